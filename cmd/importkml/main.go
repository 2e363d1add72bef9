package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
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
	"kmlconv/pkg/kmlimport"
	"kmlconv/pkg/model"
)

type Options struct {
	Logger feedback.Logger `group:"Logger options"`

	Output       string `short:"o" long:"output" env:"OUTPUT" description:"Output feature store (.db / .sqlite / .geojson)" default:"features.db"`
	SkipPoints   bool   `long:"skip-points"   description:"Do not import point placemarks"`
	SkipLines    bool   `long:"skip-lines"    description:"Do not import line placemarks"`
	SkipPolygons bool   `long:"skip-polygons" description:"Do not import polygon placemarks"`

	Args struct {
		Input string `positional-arg-name:"KML-OR-KMZ" required:"yes"`
	} `positional-args:"yes"`
}

func openSink(path string) (model.Sink, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return featureio.NewGeoJSONSink(path), nil
	default:
		return flstore.Create(path)
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

	var canceled atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Warn().Msg("Interrupted, finishing up")
		canceled.Store(true)
	}()

	sink, err := openSink(opts.Output)
	if err != nil {
		log.Fatal().Err(err).Str("file", opts.Output).Msg("Failed to create feature store")
	}

	imp := kmlimport.New(kmlimport.Options{
		SkipPoints:   opts.SkipPoints,
		SkipLines:    opts.SkipLines,
		SkipPolygons: opts.SkipPolygons,
	}, feedback.New(canceled.Load))

	start := time.Now()
	res, err := imp.ImportFile(input, sink)
	if cerr := sink.Close(); cerr != nil {
		log.Error().Err(cerr).Msg("Failed to close feature store")
	}
	if err != nil {
		if errors.Is(err, kmlimport.ErrCanceled) {
			log.Warn().Msg("Import canceled")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Import failed")
	}

	total := 0
	for _, n := range res.Counts {
		total += n
	}
	ev := log.Info().
		Str("features", humanize.Comma(int64(total))).
		Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Str("output", opts.Output)
	if fi, err := os.Stat(opts.Output); err == nil {
		ev = ev.Str("size", humanize.Bytes(uint64(fi.Size())))
	}
	ev.Msg("Import finished")
	if res.Partial {
		log.Warn().Msg("Input had markup errors, results may be partial")
	}
}
