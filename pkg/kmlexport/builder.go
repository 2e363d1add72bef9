// Package kmlexport builds KML and KMZ documents from vector features:
// per-feature placemarks with style references, attribute tables,
// normalized timestamps and embedded photo and icon assets.
package kmlexport

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	kml "github.com/twpayne/go-kml"

	"kmlconv/pkg/feedback"
	"kmlconv/pkg/kmltime"
	"kmlconv/pkg/model"
	"kmlconv/pkg/options"
	"kmlconv/pkg/symbology"
)

// ErrCanceled is returned when the run is stopped early. The output
// written up to that point is a valid, feature-truncated document.
var ErrCanceled = errors.New("export canceled")

type Exporter struct {
	opts options.Export
	fb   feedback.Feedback
	hasZ bool
}

func New(opts options.Export, fb feedback.Feedback) *Exporter {
	if fb == nil {
		fb = feedback.Discard{}
	}
	return &Exporter{opts: opts, fb: fb}
}

// ExportFile writes one source layer to path: a zip archive for .kmz,
// bare markup (with assets alongside) for anything else. A run that
// processes no features writes no file at all.
func (e *Exporter) ExportFile(src model.Source, path string) error {
	kind := src.Kind()
	if kind == model.NoGeometry {
		return fmt.Errorf("source %s carries no geometry", src.Name())
	}
	e.hasZ = true
	if za, ok := src.(model.ZAware); ok {
		e.hasZ = za.HasZ()
	}

	var renderer *symbology.Renderer
	if e.opts.Style != nil && e.opts.Style.Mode != "" && e.opts.Style.Mode != symbology.ModeNone {
		var err error
		renderer, err = symbology.Compile(*e.opts.Style, func() ([]float64, error) {
			return columnValues(src, e.opts.Style.Field)
		})
		if err != nil {
			return err
		}
	}
	cache, err := newStyleCache(renderer, kind, &e.opts)
	if err != nil {
		return err
	}
	photos := newPhotoStore(e.opts.PhotoMaxDim)

	if e.opts.FolderField != "" {
		if o, ok := src.(model.Orderer); ok {
			if err := o.OrderBy(e.opts.FolderField); err != nil {
				return err
			}
		}
	}

	descFields := e.opts.DescriptionFields
	if descFields == nil {
		for _, col := range src.Schema() {
			descFields = append(descFields, col.Name)
		}
	}

	total := src.Count()
	var children []kml.Element
	var group *kml.CompoundElement
	lastCategory, haveCategory := "", false
	num, cnt := 0, 0
	canceled := false

	for {
		if e.fb.IsCanceled() {
			canceled = true
			break
		}
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cnt++
		if f.Geom.Empty() {
			continue
		}
		styleURL, ok := cache.StyleFor(f)
		if !ok {
			continue
		}
		if src.CRS() != model.EPSG4326 {
			if err := model.Reproject(&f.Geom, src.CRS(), model.EPSG4326); err != nil {
				return err
			}
		}

		pm := e.placemark(f, kind, styleURL, descFields, photos)
		if e.opts.FolderField != "" {
			cat := strings.TrimSpace(f.StringValue(e.opts.FolderField))
			if cat == "" {
				cat = "Uncategorized"
			}
			if !haveCategory || cat != lastCategory {
				group = kml.Folder(kml.Name(cat))
				children = append(children, group)
				lastCategory, haveCategory = cat, true
			}
			group.Add(pm)
		} else {
			children = append(children, pm)
		}
		num++
		if cnt%100 == 0 && total > 0 {
			e.fb.SetProgress(100 * float64(cnt) / float64(total))
		}
	}

	if num == 0 {
		e.fb.Info("no features processed")
		if canceled {
			return ErrCanceled
		}
		return nil
	}

	base := kml.Folder(append([]kml.Element{kml.Name(src.Name())}, children...)...)
	docEls := append([]kml.Element{kml.Name(src.Name())}, cache.SharedStyles()...)
	doc := newRoot(kml.Document(append(docEls, base)...))

	files := map[string][]byte{}
	for name, data := range cache.Files() {
		files[name] = data
	}
	for name, data := range photos.Files() {
		files[name] = data
	}

	if strings.EqualFold(filepath.Ext(path), ".kmz") {
		err = writeKMZ(path, doc, files)
	} else {
		err = writeKML(path, doc, files)
	}
	if err != nil {
		return err
	}
	e.fb.SetProgress(100)
	e.fb.Info("exported %d of %d features to %s", num, cnt, path)
	if canceled {
		return ErrCanceled
	}
	return nil
}

// placemark assembles one feature in the document's child order: name,
// description, time primitives, style reference, attributes, geometry.
func (e *Exporter) placemark(f *model.Feature, kind model.GeomKind,
	styleURL string, descFields []string, photos *photoStore) kml.Element {

	var els []kml.Element

	name := ""
	if e.opts.NameField != "" {
		name = strings.TrimSpace(f.StringValue(e.opts.NameField))
		if name != "" {
			els = append(els, kml.Name(name))
		}
	}

	photoHref := ""
	if e.opts.PhotoField != "" {
		photoHref = photos.Add(strings.TrimSpace(f.StringValue(e.opts.PhotoField)))
	}
	if desc := buildDescription(f, descFields, e.opts.LineBreaks, photoHref); desc != "" {
		els = append(els, kml.Description(desc))
	}

	if when := e.resolveTime(f, e.opts.Stamp); when != "" {
		els = append(els, kml.TimeStamp(stringElement{name: "when", value: when}))
	}
	begin := e.resolveTime(f, e.opts.Begin)
	end := e.resolveTime(f, e.opts.End)
	if begin != "" || end != "" {
		var span []kml.Element
		if begin != "" {
			span = append(span, stringElement{name: "begin", value: begin})
		}
		if end != "" {
			span = append(span, stringElement{name: "end", value: end})
		}
		els = append(els, kml.TimeSpan(span...))
	}

	if styleURL != "" {
		els = append(els, kml.StyleURL(styleURL))
	}
	if ed := extendedData(f, descFields); ed != nil {
		els = append(els, ed)
	}
	els = append(els, e.geometry(f, kind, name))
	return kml.Placemark(els...)
}

func (e *Exporter) resolveTime(f *model.Feature, b options.TimeBinding) string {
	if b.Empty() {
		return ""
	}
	var combined, dateV, timeV any
	if b.Field != "" {
		combined = f.Value(b.Field)
	}
	if b.DateField != "" {
		dateV = f.Value(b.DateField)
	}
	if b.TimeField != "" {
		timeV = f.Value(b.TimeField)
	}
	s, ok := kmltime.Resolve(combined, dateV, timeV)
	if !ok {
		return ""
	}
	return s
}

// altitudeFor picks the z value of a vertex under the configured
// interpretation. Geometry elevation falls back to the attribute
// column when the source geometries are flat.
func (e *Exporter) altitudeFor(f *model.Feature, v model.Vertex) float64 {
	switch e.opts.Altitude {
	case options.AltitudeAttribute:
		alt, _ := f.FloatValue(e.opts.AltitudeField)
		return alt + e.opts.AltitudeAddend
	case options.AltitudeNone:
		return 0
	}
	if !e.hasZ {
		alt, _ := f.FloatValue(e.opts.AltitudeField)
		return alt + e.opts.AltitudeAddend
	}
	return v.Z + e.opts.AltitudeAddend
}

// altitudeMode resolves the per-feature vertical datum: the feature's
// own mode column wins when it holds a recognized value.
func (e *Exporter) altitudeMode(f *model.Feature) []kml.Element {
	if e.opts.Altitude == options.AltitudeNone {
		return nil
	}
	mode := e.opts.AltitudeMode
	if e.opts.AltitudeModeField != "" {
		fm := strings.TrimSpace(f.StringValue(e.opts.AltitudeModeField))
		for _, m := range options.AltitudeModes {
			if fm == m {
				mode = fm
				break
			}
		}
	}
	var els []kml.Element
	if mode != "" {
		els = append(els, kml.AltitudeMode(kml.AltitudeModeEnum(mode)))
	}
	if e.opts.Extrude {
		els = append(els, kml.Extrude(true))
	}
	return els
}

func (e *Exporter) geometry(f *model.Feature, kind model.GeomKind, name string) kml.Element {
	modeEls := e.altitudeMode(f)
	hiddenLabel := kind == model.PolygonKind && name != "" && e.opts.HiddenPolygonLabels

	var parts []kml.Element
	if hiddenLabel {
		if c, ok := polygonCentroid(&f.Geom); ok {
			parts = append(parts, kml.Point(kml.Coordinates(c)))
		}
	}

	switch kind {
	case model.PointKind:
		for _, v := range f.Geom.Points {
			els := append(append([]kml.Element{}, modeEls...),
				kml.Coordinates(kml.Coordinate{Lon: v.X, Lat: v.Y, Alt: e.altitudeFor(f, v)}))
			parts = append(parts, kml.Point(els...))
		}
	case model.LineKind:
		for _, line := range f.Geom.Lines {
			els := append(append([]kml.Element{}, modeEls...),
				kml.Coordinates(e.coords(f, line)...))
			parts = append(parts, kml.LineString(els...))
		}
	case model.PolygonKind:
		for _, poly := range f.Geom.Polygons {
			els := append(append([]kml.Element{}, modeEls...),
				kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(e.coords(f, poly.Exterior)...))))
			for _, ring := range poly.Interiors {
				els = append(els,
					kml.InnerBoundaryIs(kml.LinearRing(kml.Coordinates(e.coords(f, ring)...))))
			}
			parts = append(parts, kml.Polygon(els...))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return kml.MultiGeometry(parts...)
}

func (e *Exporter) coords(f *model.Feature, vs []model.Vertex) []kml.Coordinate {
	out := make([]kml.Coordinate, 0, len(vs))
	for _, v := range vs {
		out = append(out, kml.Coordinate{Lon: v.X, Lat: v.Y, Alt: e.altitudeFor(f, v)})
	}
	return out
}

// columnValues drains the numeric classification column and rewinds the
// source for the main pass.
func columnValues(src model.Source, field string) ([]float64, error) {
	rw, ok := src.(model.Rewinder)
	if !ok {
		return nil, fmt.Errorf("source %s cannot rewind for classification", src.Name())
	}
	var values []float64
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if v, ok := f.FloatValue(field); ok {
			values = append(values, v)
		}
	}
	if err := rw.Reset(); err != nil {
		return nil, err
	}
	return values, nil
}
