package model

import "testing"

func TestGeometryHasZ(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
		want bool
	}{
		{"flat point", Geometry{Kind: PointKind, Points: []Vertex{{X: 1, Y: 2}}}, false},
		{"elevated point", Geometry{Kind: PointKind, Points: []Vertex{{X: 1, Y: 2, Z: 3}}}, true},
		{"flat line", Geometry{Kind: LineKind, Lines: [][]Vertex{{{X: 1, Y: 2}, {X: 3, Y: 4}}}}, false},
		{"elevated line tail", Geometry{Kind: LineKind, Lines: [][]Vertex{{{X: 1, Y: 2}, {X: 3, Y: 4, Z: 5}}}}, true},
		{"elevated hole only", Geometry{Kind: PolygonKind, Polygons: []Polygon{{
			Exterior:  []Vertex{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
			Interiors: [][]Vertex{{{X: 0.2, Y: 0.2, Z: 7}}},
		}}}, true},
		{"empty", Geometry{}, false},
	}
	for _, tc := range tests {
		if got := tc.g.HasZ(); got != tc.want {
			t.Errorf("%s: HasZ() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
