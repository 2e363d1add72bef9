package kmlexport

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	kml "github.com/twpayne/go-kml"

	"kmlconv/pkg/model"
)

// polygonCentroid is the area centroid of the first part's exterior
// ring. Hidden label points sit there so the polygon's name renders
// even though polygons themselves carry no label in most viewers.
func polygonCentroid(g *model.Geometry) (kml.Coordinate, bool) {
	if g.Kind != model.PolygonKind || len(g.Polygons) == 0 {
		return kml.Coordinate{}, false
	}
	ext := g.Polygons[0].Exterior
	if len(ext) < 3 {
		return kml.Coordinate{}, false
	}
	ring := make(orb.Ring, 0, len(ext)+1)
	for _, v := range ext {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	c, area := planar.CentroidArea(ring)
	if area == 0 {
		return kml.Coordinate{}, false
	}
	return kml.Coordinate{Lon: c.X(), Lat: c.Y()}, true
}
