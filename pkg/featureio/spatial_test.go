package featureio

import (
	"io"
	"testing"

	"kmlconv/pkg/model"
)

func clipSource() *Memory {
	sch := model.Schema{{Name: "name", Type: model.StringField}}
	pt := func(name string, x, y float64) *model.Feature {
		return &model.Feature{
			Geom: model.Geometry{Kind: model.PointKind,
				Points: []model.Vertex{{X: x, Y: y}}},
			Schema: sch, Values: []any{name},
		}
	}
	line := func(name string, a, b model.Vertex) *model.Feature {
		return &model.Feature{
			Geom:   model.Geometry{Kind: model.LineKind, Lines: [][]model.Vertex{{a, b}}},
			Schema: sch, Values: []any{name},
		}
	}
	return NewMemory("chart", model.PointKind, model.EPSG4326, sch, []*model.Feature{
		pt("inside-a", 10.2, 47.1),
		pt("outside", 25, 60),
		line("crossing", model.Vertex{X: 9, Y: 46}, model.Vertex{X: 12, Y: 48}),
		pt("inside-b", 10.8, 47.9),
	})
}

func TestClip(t *testing.T) {
	box := BBox{MinX: 10, MinY: 47, MaxX: 11, MaxY: 48}
	sub, err := Clip(clipSource(), box)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Count() != 3 {
		t.Fatalf("count = %d, want 3", sub.Count())
	}
	var names []string
	for {
		f, err := sub.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, f.StringValue("name"))
	}
	want := []string{"inside-a", "crossing", "inside-b"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	if sub.Name() != "chart" || sub.Kind() != model.PointKind {
		t.Errorf("metadata not carried: %q %v", sub.Name(), sub.Kind())
	}
}

func TestClipEmptyResult(t *testing.T) {
	sub, err := Clip(clipSource(), BBox{MinX: 100, MinY: 80, MaxX: 101, MaxY: 81})
	if err != nil {
		t.Fatal(err)
	}
	if sub.Count() != 0 {
		t.Errorf("count = %d, want 0", sub.Count())
	}
	if _, err := sub.Next(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}
}
