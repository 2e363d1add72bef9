package featureio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"kmlconv/pkg/model"
)

// OpenShapefile loads a shapefile as a feature source. Numeric dbf
// columns (N and F) become double columns, everything else string. A
// sibling .prj naming a mercator projection tags the source EPSG:3857.
func OpenShapefile(path string) (*Memory, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("featureio: %s: %w", path, err)
	}
	defer r.Close()

	kind, ok := shapeKind(r.GeometryType)
	if !ok {
		return nil, fmt.Errorf("featureio: %s: unsupported shape type %d", path, r.GeometryType)
	}

	fields := r.Fields()
	schema := make(model.Schema, len(fields))
	for i, f := range fields {
		t := model.StringField
		if f.Fieldtype == 'N' || f.Fieldtype == 'F' {
			t = model.DoubleField
		}
		schema[i] = model.Field{Name: f.String(), Type: t}
	}

	var feats []*model.Feature
	for r.Next() {
		row, shape := r.Shape()
		g, ok := shapeGeometry(shape)
		if !ok || g.Empty() {
			continue
		}
		vals := make([]any, len(schema))
		for i := range fields {
			raw := strings.TrimSpace(r.ReadAttribute(row, i))
			if schema[i].Type == model.DoubleField {
				if n, err := strconv.ParseFloat(raw, 64); err == nil {
					vals[i] = n
				}
			} else {
				vals[i] = raw
			}
		}
		feats = append(feats, &model.Feature{Geom: g, Schema: schema, Values: vals})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("featureio: %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	src := NewMemory(name, kind, prjCRS(path), schema, feats)
	src.SetHasZ(zShape(r.GeometryType))
	return src, nil
}

func zShape(t shp.ShapeType) bool {
	switch t {
	case shp.POINTZ, shp.MULTIPOINTZ, shp.POLYLINEZ, shp.POLYGONZ:
		return true
	}
	return false
}

func shapeKind(t shp.ShapeType) (model.GeomKind, bool) {
	switch t {
	case shp.POINT, shp.POINTZ, shp.MULTIPOINT, shp.MULTIPOINTZ:
		return model.PointKind, true
	case shp.POLYLINE, shp.POLYLINEZ:
		return model.LineKind, true
	case shp.POLYGON, shp.POLYGONZ:
		return model.PolygonKind, true
	}
	return model.NoGeometry, false
}

func shapeGeometry(s shp.Shape) (model.Geometry, bool) {
	switch t := s.(type) {
	case *shp.Point:
		return model.Geometry{Kind: model.PointKind,
			Points: []model.Vertex{{X: t.X, Y: t.Y}}}, true
	case *shp.PointZ:
		return model.Geometry{Kind: model.PointKind,
			Points: []model.Vertex{{X: t.X, Y: t.Y, Z: t.Z}}}, true
	case *shp.MultiPoint:
		return model.Geometry{Kind: model.PointKind,
			Points: shapeVertices(t.Points, nil)}, true
	case *shp.MultiPointZ:
		return model.Geometry{Kind: model.PointKind,
			Points: shapeVertices(t.Points, t.ZArray)}, true
	case *shp.PolyLine:
		return model.Geometry{Kind: model.LineKind,
			Lines: shapeParts(t.Parts, t.Points, nil)}, true
	case *shp.PolyLineZ:
		return model.Geometry{Kind: model.LineKind,
			Lines: shapeParts(t.Parts, t.Points, t.ZArray)}, true
	case *shp.Polygon:
		return model.Geometry{Kind: model.PolygonKind,
			Polygons: shapePolygons(shapeParts(t.Parts, t.Points, nil))}, true
	case *shp.PolygonZ:
		return model.Geometry{Kind: model.PolygonKind,
			Polygons: shapePolygons(shapeParts(t.Parts, t.Points, t.ZArray))}, true
	}
	return model.Geometry{}, false
}

func shapeVertices(pts []shp.Point, z []float64) []model.Vertex {
	out := make([]model.Vertex, len(pts))
	for i, p := range pts {
		out[i] = model.Vertex{X: p.X, Y: p.Y}
		if i < len(z) {
			out[i].Z = z[i]
		}
	}
	return out
}

func shapeParts(parts []int32, pts []shp.Point, z []float64) [][]model.Vertex {
	out := make([][]model.Vertex, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || int(end) > len(pts) || start >= end {
			continue
		}
		part := shapeVertices(pts[start:end], nil)
		for j := range part {
			if k := int(start) + j; k < len(z) {
				part[j].Z = z[k]
			}
		}
		out = append(out, part)
	}
	return out
}

// shapePolygons regroups rings into polygons. Shapefile exterior rings
// wind clockwise, so a negative signed area starts a new polygon and
// the rest become holes of the one before.
func shapePolygons(rings [][]model.Vertex) []model.Polygon {
	var polys []model.Polygon
	for _, ring := range rings {
		if signedArea(ring) < 0 || len(polys) == 0 {
			polys = append(polys, model.Polygon{Exterior: ring})
		} else {
			p := &polys[len(polys)-1]
			p.Interiors = append(p.Interiors, ring)
		}
	}
	return polys
}

func signedArea(ring []model.Vertex) float64 {
	var a float64
	for i := range ring {
		j := (i + 1) % len(ring)
		a += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return a / 2
}

func prjCRS(path string) model.CRS {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	raw, err := os.ReadFile(prj)
	if err != nil {
		return model.EPSG4326
	}
	wkt := string(raw)
	if strings.Contains(wkt, "3857") || strings.Contains(wkt, "Pseudo-Mercator") ||
		strings.Contains(wkt, "Mercator_Auxiliary_Sphere") {
		return model.EPSG3857
	}
	return model.EPSG4326
}
