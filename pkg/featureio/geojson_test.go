package featureio

import (
	"io"
	"path/filepath"
	"testing"

	"kmlconv/pkg/model"
)

var gjSchema = model.Schema{
	{Name: "name", Type: model.StringField},
	{Name: "depth", Type: model.DoubleField},
}

func writeGeoJSON(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layers.geojson")
	s := NewGeoJSONSink(path)
	h, err := s.CreateSchema(model.PointKind, gjSchema)
	if err != nil {
		t.Fatal(err)
	}
	pts := []*model.Feature{
		{Geom: model.Geometry{Kind: model.PointKind,
			Points: []model.Vertex{{X: 10.5, Y: 47.25, Z: 2100}}},
			Schema: gjSchema, Values: []any{"hut", 12.5}},
		{Geom: model.Geometry{Kind: model.PointKind,
			Points: []model.Vertex{{X: 11, Y: 47}, {X: 11.5, Y: 47.5}}},
			Schema: gjSchema, Values: []any{"pair", nil}},
	}
	for _, f := range pts {
		if err := s.AddFeature(h, f); err != nil {
			t.Fatal(err)
		}
	}
	lh, err := s.CreateSchema(model.LineKind, gjSchema)
	if err != nil {
		t.Fatal(err)
	}
	lf := &model.Feature{
		Geom: model.Geometry{Kind: model.LineKind,
			Lines: [][]model.Vertex{{{X: 1, Y: 2}, {X: 3, Y: 4}}}},
		Schema: gjSchema, Values: []any{"track", 3.0},
	}
	if err := s.AddFeature(lh, lf); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGeoJSONRoundTrip(t *testing.T) {
	path := writeGeoJSON(t)

	src, err := OpenGeoJSON(path, model.PointKind)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Name() != "layers" {
		t.Errorf("name = %q", src.Name())
	}
	if src.Count() != 2 {
		t.Fatalf("count = %d", src.Count())
	}
	if !src.HasZ() {
		t.Error("third position elements should mark the source as carrying elevations")
	}
	sch := src.Schema()
	if len(sch) != 2 || sch[0].Name != "depth" || sch[0].Type != model.DoubleField ||
		sch[1].Name != "name" || sch[1].Type != model.StringField {
		t.Fatalf("schema = %+v", sch)
	}
	f, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.StringValue("name") != "hut" {
		t.Errorf("name = %q", f.StringValue("name"))
	}
	if v, ok := f.FloatValue("depth"); !ok || v != 12.5 {
		t.Errorf("depth = %v, %v", v, ok)
	}
	if f.Geom.Points[0].Z != 2100 {
		t.Errorf("altitude lost: %+v", f.Geom.Points[0])
	}
	f, err = src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Geom.Points) != 2 {
		t.Errorf("multipoint parts = %d", len(f.Geom.Points))
	}
	if f.Value("depth") != nil {
		t.Errorf("absent property = %v", f.Value("depth"))
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestGeoJSONKindFilter(t *testing.T) {
	path := writeGeoJSON(t)
	src, err := OpenGeoJSON(path, model.LineKind)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Count() != 1 || src.Kind() != model.LineKind {
		t.Fatalf("count %d kind %v", src.Count(), src.Kind())
	}
	if src.HasZ() {
		t.Error("flat line layer claims elevations")
	}
	f, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Geom.Lines) != 1 || len(f.Geom.Lines[0]) != 2 {
		t.Errorf("geometry = %+v", f.Geom)
	}
}

func TestMemoryOrderByAndReset(t *testing.T) {
	mk := func(name string, depth any) *model.Feature {
		return &model.Feature{Schema: gjSchema, Values: []any{name, depth}}
	}
	m := NewMemory("m", model.PointKind, model.EPSG4326, gjSchema,
		[]*model.Feature{mk("b", 3.0), mk("a", 10.0), mk("c", 2.0)})

	if err := m.OrderBy("depth"); err != nil {
		t.Fatal(err)
	}
	var got []string
	for {
		f, err := m.Next()
		if err == io.EOF {
			break
		}
		got = append(got, f.StringValue("name"))
	}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("numeric order = %v", got)
		}
	}

	if err := m.OrderBy("name"); err != nil {
		t.Fatal(err)
	}
	f, _ := m.Next()
	if f.StringValue("name") != "a" {
		t.Errorf("lexical order starts with %q", f.StringValue("name"))
	}

	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	if f, _ := m.Next(); f.StringValue("name") != "a" {
		t.Error("reset did not rewind")
	}

	if err := m.OrderBy("missing"); err == nil {
		t.Error("unknown column accepted")
	}
}
