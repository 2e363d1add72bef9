package kmlimport

import (
	"strconv"
	"strings"

	"kmlconv/pkg/model"
)

// ParseCoordinates turns a coordinate text blob into vertices. Records
// are whitespace separated; each record is lon,lat[,alt]. A record with
// six or more comma separated fields is a known producer bug (several
// triples joined without whitespace) and is reinterpreted three fields
// at a time. Unparsable fields degrade to zero instead of failing the
// document.
func ParseCoordinates(blob string) []model.Vertex {
	var out []model.Vertex
	for _, rec := range strings.Fields(strings.TrimSpace(blob)) {
		c := strings.Split(rec, ",")
		if len(c) >= 6 {
			for i := 0; i < len(c)-1; i += 3 {
				lon, err1 := strconv.ParseFloat(c[i], 64)
				lat, err2 := strconv.ParseFloat(c[i+1], 64)
				if err1 != nil || err2 != nil {
					lon, lat = 0, 0
				}
				alt := 0.0
				if i+2 < len(c) {
					if a, err := strconv.ParseFloat(c[i+2], 64); err == nil {
						alt = a
					}
				}
				out = append(out, model.Vertex{X: lon, Y: lat, Z: alt})
			}
			continue
		}

		lon, lat, alt := 0.0, 0.0, 0.0
		ok := len(c) >= 2
		if ok {
			v0, err1 := strconv.ParseFloat(c[0], 64)
			v1, err2 := strconv.ParseFloat(c[1], 64)
			ok = err1 == nil && err2 == nil
			if ok {
				lon, lat = v0, v1
				if len(c) >= 3 {
					if a, err := strconv.ParseFloat(c[2], 64); err == nil {
						alt = a
					} else {
						lon, lat = 0, 0
					}
				}
			}
		}
		out = append(out, model.Vertex{X: lon, Y: lat, Z: alt})
	}
	return out
}

// parsePoint handles the single coordinate of a Point element. Unlike
// line parsing, a point whose lon/lat cannot be read is dropped.
func parsePoint(coord string) (model.Vertex, bool) {
	c := strings.Split(strings.TrimSpace(coord), ",")
	if len(c) < 2 {
		return model.Vertex{}, false
	}
	lon, err1 := strconv.ParseFloat(c[0], 64)
	lat, err2 := strconv.ParseFloat(c[1], 64)
	if err1 != nil || err2 != nil {
		return model.Vertex{}, false
	}
	alt := 0.0
	if len(c) >= 3 {
		a, err := strconv.ParseFloat(c[2], 64)
		if err != nil {
			return model.Vertex{}, false
		}
		alt = a
	}
	return model.Vertex{X: lon, Y: lat, Z: alt}, true
}
