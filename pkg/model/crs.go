package model

import (
	"fmt"
	"strings"

	geo "github.com/paulmach/go.geo"
)

// CRS is a coordinate reference system tag. The document format is
// always EPSG:4326; stores may hold web mercator.
type CRS string

const (
	EPSG4326 CRS = "EPSG:4326"
	EPSG3857 CRS = "EPSG:3857"
)

func ParseCRS(s string) (CRS, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EPSG:4326", "4326", "WGS84":
		return EPSG4326, nil
	case "EPSG:3857", "3857", "EPSG:900913":
		return EPSG3857, nil
	}
	return "", &ErrUnsupportedCRS{Tag: s}
}

type ErrUnsupportedCRS struct {
	Tag string
}

func (e *ErrUnsupportedCRS) Error() string {
	return fmt.Sprintf("unsupported coordinate reference system %q (EPSG:4326 and EPSG:3857 are supported)", e.Tag)
}

// Reproject transforms g in place between the supported systems. The z
// value is carried through untouched.
func Reproject(g *Geometry, from, to CRS) error {
	if from == to || g.Empty() {
		return nil
	}
	var tf func(x, y float64) (float64, float64)
	switch {
	case from == EPSG3857 && to == EPSG4326:
		tf = func(x, y float64) (float64, float64) {
			p := geo.NewPoint(x, y)
			geo.Mercator.Inverse(p)
			return p[0], p[1]
		}
	case from == EPSG4326 && to == EPSG3857:
		tf = func(x, y float64) (float64, float64) {
			p := geo.NewPoint(x, y)
			geo.Mercator.Project(p)
			return p[0], p[1]
		}
	default:
		return &ErrUnsupportedCRS{Tag: string(from) + "->" + string(to)}
	}

	vxs := func(vs []Vertex) {
		for i := range vs {
			vs[i].X, vs[i].Y = tf(vs[i].X, vs[i].Y)
		}
	}
	vxs(g.Points)
	for i := range g.Lines {
		vxs(g.Lines[i])
	}
	for i := range g.Polygons {
		vxs(g.Polygons[i].Exterior)
		for j := range g.Polygons[i].Interiors {
			vxs(g.Polygons[i].Interiors[j])
		}
	}
	return nil
}
