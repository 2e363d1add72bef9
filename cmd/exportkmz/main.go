package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/yookoala/realpath"

	"kmlconv/pkg/featureio"
	"kmlconv/pkg/feedback"
	"kmlconv/pkg/flstore"
	"kmlconv/pkg/kmlexport"
	"kmlconv/pkg/model"
	"kmlconv/pkg/options"
)

type Options struct {
	Logger feedback.Logger `group:"Logger options"`

	Profile string `short:"c" long:"profile" env:"EXPORT_PROFILE" description:"Export profile YAML"`
	Layer   string `short:"l" long:"layer" description:"Layer name for sqlite stores (point / line / polygon)"`
	Kind    string `short:"k" long:"kind" description:"Geometry kind for GeoJSON stores" default:"point" choice:"point" choice:"line" choice:"polygon"`
	BBox    string `long:"bbox" description:"Clip to extent minx,miny,maxx,maxy (store CRS)"`

	Args struct {
		Input  string `positional-arg-name:"STORE" required:"yes"`
		Output string `positional-arg-name:"KML-OR-KMZ" required:"yes"`
	} `positional-args:"yes"`
}

func parseKind(s string) model.GeomKind {
	switch s {
	case "line":
		return model.LineKind
	case "polygon":
		return model.PolygonKind
	}
	return model.PointKind
}

func parseBBox(s string) (featureio.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return featureio.BBox{}, fmt.Errorf("bbox needs 4 comma separated numbers, got %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return featureio.BBox{}, fmt.Errorf("bbox element %q: %w", p, err)
		}
		vals[i] = v
	}
	return featureio.BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

func openSource(opts *Options, input string) (model.Source, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".geojson", ".json":
		return featureio.OpenGeoJSON(input, parseKind(opts.Kind))
	case ".shp":
		return featureio.OpenShapefile(input)
	default:
		return flstore.Open(input, opts.Layer)
	}
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	input, err := realpath.Realpath(opts.Args.Input)
	if err != nil {
		log.Fatal().Err(err).Str("file", opts.Args.Input).Msg("Input not found")
	}

	profile := options.DefaultExport()
	if opts.Profile != "" {
		profile, err = options.LoadExport(opts.Profile)
		if err != nil {
			log.Fatal().Err(err).Str("file", opts.Profile).Msg("Failed to load export profile")
		}
	}

	src, err := openSource(&opts, input)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open feature store")
	}
	defer src.Close()

	if opts.BBox != "" {
		box, err := parseBBox(opts.BBox)
		if err != nil {
			log.Fatal().Err(err).Msg("Bad --bbox")
		}
		before := src.Count()
		sub, err := featureio.Clip(src, box)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to clip feature store")
		}
		src.Close()
		src = sub
		log.Info().Int("matched", sub.Count()).Int("total", before).Msg("Clipped to extent")
	}

	var canceled atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Warn().Msg("Interrupted, finishing up")
		canceled.Store(true)
	}()

	exp := kmlexport.New(profile, feedback.New(canceled.Load))
	start := time.Now()
	err = exp.ExportFile(src, opts.Args.Output)
	if err != nil && !errors.Is(err, kmlexport.ErrCanceled) {
		log.Fatal().Err(err).Msg("Export failed")
	}

	ev := log.Info().
		Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Str("output", opts.Args.Output)
	if fi, serr := os.Stat(opts.Args.Output); serr == nil {
		ev = ev.Str("size", humanize.Bytes(uint64(fi.Size())))
	}
	ev.Msg("Export finished")
	if errors.Is(err, kmlexport.ErrCanceled) {
		os.Exit(1)
	}
}
