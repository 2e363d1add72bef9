package featureio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"kmlconv/pkg/model"
)

// GeoJSONSink collects imported features into one feature collection
// and writes it out on Close. Altitudes travel as third position
// elements; attributes become properties.
type GeoJSONSink struct {
	path string
	fc   *geojson.FeatureCollection
}

func NewGeoJSONSink(path string) *GeoJSONSink {
	return &GeoJSONSink{path: path, fc: geojson.NewFeatureCollection()}
}

func (s *GeoJSONSink) CreateSchema(kind model.GeomKind, schema model.Schema) (model.SinkHandle, error) {
	return schema, nil
}

func (s *GeoJSONSink) AddFeature(h model.SinkHandle, f *model.Feature) error {
	schema, ok := h.(model.Schema)
	if !ok {
		return fmt.Errorf("featureio: bad layer handle %T", h)
	}
	gf, err := toGeoJSON(&f.Geom)
	if err != nil {
		return err
	}
	for i, fld := range schema {
		if i < len(f.Values) && f.Values[i] != nil {
			gf.SetProperty(fld.Name, f.Values[i])
		}
	}
	s.fc.AddFeature(gf)
	return nil
}

func (s *GeoJSONSink) Close() error {
	raw, err := s.fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

func toGeoJSON(g *model.Geometry) (*geojson.Feature, error) {
	switch g.Kind {
	case model.PointKind:
		if len(g.Points) == 1 {
			return geojson.NewPointFeature(position(g.Points[0])), nil
		}
		coords := make([][]float64, len(g.Points))
		for i, v := range g.Points {
			coords[i] = position(v)
		}
		return geojson.NewMultiPointFeature(coords...), nil
	case model.LineKind:
		lines := make([][][]float64, len(g.Lines))
		for i, l := range g.Lines {
			lines[i] = positions(l)
		}
		if len(lines) == 1 {
			return geojson.NewLineStringFeature(lines[0]), nil
		}
		return geojson.NewMultiLineStringFeature(lines...), nil
	case model.PolygonKind:
		polys := make([][][][]float64, len(g.Polygons))
		for i, p := range g.Polygons {
			rings := [][][]float64{positions(p.Exterior)}
			for _, hole := range p.Interiors {
				rings = append(rings, positions(hole))
			}
			polys[i] = rings
		}
		if len(polys) == 1 {
			return geojson.NewPolygonFeature(polys[0]), nil
		}
		return geojson.NewMultiPolygonFeature(polys...), nil
	}
	return nil, fmt.Errorf("featureio: no geometry to serialize")
}

func position(v model.Vertex) []float64 {
	if v.Z != 0 {
		return []float64{v.X, v.Y, v.Z}
	}
	return []float64{v.X, v.Y}
}

func positions(vs []model.Vertex) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = position(v)
	}
	return out
}

// OpenGeoJSON loads the features of one geometry kind from a GeoJSON
// file. Properties of the kept features form the schema: a column is
// numeric when every present value is a number.
func OpenGeoJSON(path string, kind model.GeomKind) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("featureio: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("featureio: %s: %w", path, err)
	}

	type pick struct {
		geom  model.Geometry
		props map[string]interface{}
	}
	var picks []pick
	numeric := map[string]bool{}
	for _, gf := range fc.Features {
		g, ok := fromGeoJSON(gf.Geometry)
		if !ok || g.Kind != kind {
			continue
		}
		picks = append(picks, pick{geom: g, props: gf.Properties})
		for k, v := range gf.Properties {
			if v == nil {
				continue
			}
			if _, isNum := v.(float64); !isNum {
				numeric[k] = false
			} else if _, seen := numeric[k]; !seen {
				numeric[k] = true
			}
		}
	}

	var names []string
	for k := range numeric {
		names = append(names, k)
	}
	sort.Strings(names)
	schema := make(model.Schema, len(names))
	for i, k := range names {
		t := model.StringField
		if numeric[k] {
			t = model.DoubleField
		}
		schema[i] = model.Field{Name: k, Type: t}
	}

	feats := make([]*model.Feature, len(picks))
	for i, p := range picks {
		vals := make([]any, len(schema))
		for j, fld := range schema {
			vals[j] = p.props[fld.Name]
		}
		feats[i] = &model.Feature{Geom: p.geom, Schema: schema, Values: vals}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewMemory(name, kind, model.EPSG4326, schema, feats), nil
}

func fromGeoJSON(g *geojson.Geometry) (model.Geometry, bool) {
	if g == nil {
		return model.Geometry{}, false
	}
	switch g.Type {
	case geojson.GeometryPoint:
		return model.Geometry{Kind: model.PointKind,
			Points: []model.Vertex{vertex(g.Point)}}, true
	case geojson.GeometryMultiPoint:
		return model.Geometry{Kind: model.PointKind,
			Points: vertices(g.MultiPoint)}, true
	case geojson.GeometryLineString:
		return model.Geometry{Kind: model.LineKind,
			Lines: [][]model.Vertex{vertices(g.LineString)}}, true
	case geojson.GeometryMultiLineString:
		lines := make([][]model.Vertex, len(g.MultiLineString))
		for i, l := range g.MultiLineString {
			lines[i] = vertices(l)
		}
		return model.Geometry{Kind: model.LineKind, Lines: lines}, true
	case geojson.GeometryPolygon:
		return model.Geometry{Kind: model.PolygonKind,
			Polygons: []model.Polygon{polygon(g.Polygon)}}, true
	case geojson.GeometryMultiPolygon:
		polys := make([]model.Polygon, len(g.MultiPolygon))
		for i, p := range g.MultiPolygon {
			polys[i] = polygon(p)
		}
		return model.Geometry{Kind: model.PolygonKind, Polygons: polys}, true
	}
	return model.Geometry{}, false
}

func polygon(rings [][][]float64) model.Polygon {
	var p model.Polygon
	if len(rings) > 0 {
		p.Exterior = vertices(rings[0])
	}
	for _, r := range rings[1:] {
		p.Interiors = append(p.Interiors, vertices(r))
	}
	return p
}

func vertex(pos []float64) model.Vertex {
	var v model.Vertex
	if len(pos) > 1 {
		v.X, v.Y = pos[0], pos[1]
	}
	if len(pos) > 2 {
		v.Z = pos[2]
	}
	return v
}

func vertices(poss [][]float64) []model.Vertex {
	out := make([]model.Vertex, len(poss))
	for i, p := range poss {
		out[i] = vertex(p)
	}
	return out
}
