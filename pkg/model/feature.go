// Package model holds the vector feature types shared by the import and
// export sides of the converter: geometries, attribute schemas and the
// sink/source interfaces a feature store has to provide.
package model

import (
	"fmt"
	"strconv"
	"time"
)

type GeomKind int

const (
	NoGeometry GeomKind = iota
	PointKind
	LineKind
	PolygonKind
)

func (k GeomKind) String() string {
	switch k {
	case PointKind:
		return "point"
	case LineKind:
		return "line"
	case PolygonKind:
		return "polygon"
	}
	return "none"
}

// Vertex is a single x/y/z position. For geographic CRSs x is longitude
// and y is latitude.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Polygon carries one exterior ring and zero or more interior rings. A
// degenerate exterior ring (fewer than three vertices) is representable
// and passes through unchanged.
type Polygon struct {
	Exterior  []Vertex   `json:"exterior"`
	Interiors [][]Vertex `json:"interiors,omitempty"`
}

// Geometry is a tagged union over the three supported kinds. Only the
// slice matching Kind is populated; more than one part makes the
// geometry multi-part.
type Geometry struct {
	Kind     GeomKind  `json:"kind"`
	Points   []Vertex  `json:"points,omitempty"`
	Lines    [][]Vertex `json:"lines,omitempty"`
	Polygons []Polygon `json:"polygons,omitempty"`
}

func (g *Geometry) Empty() bool {
	if g == nil {
		return true
	}
	switch g.Kind {
	case PointKind:
		return len(g.Points) == 0
	case LineKind:
		return len(g.Lines) == 0
	case PolygonKind:
		return len(g.Polygons) == 0
	}
	return true
}

// PartCount reports the number of parts; a count above one means the
// geometry serializes as a multi-part container.
func (g *Geometry) PartCount() int {
	switch g.Kind {
	case PointKind:
		return len(g.Points)
	case LineKind:
		return len(g.Lines)
	case PolygonKind:
		return len(g.Polygons)
	}
	return 0
}

func (g *Geometry) Multi() bool { return g.PartCount() > 1 }

// HasZ reports whether any vertex carries a nonzero elevation.
func (g *Geometry) HasZ() bool {
	anyZ := func(vs []Vertex) bool {
		for _, v := range vs {
			if v.Z != 0 {
				return true
			}
		}
		return false
	}
	if anyZ(g.Points) {
		return true
	}
	for _, l := range g.Lines {
		if anyZ(l) {
			return true
		}
	}
	for _, p := range g.Polygons {
		if anyZ(p.Exterior) {
			return true
		}
		for _, r := range p.Interiors {
			if anyZ(r) {
				return true
			}
		}
	}
	return false
}

type FieldType int

const (
	StringField FieldType = iota
	DoubleField
	DateTimeField
)

type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is the ordered, fixed column set of a layer. Every feature row
// of the layer has exactly one value per column, in column order.
type Schema []Field

func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Feature pairs a geometry with a value row aligned to its schema.
type Feature struct {
	Geom   Geometry
	Schema Schema
	Values []any
}

// Value returns the raw value of the named column, or nil when the
// column does not exist or carries no value.
func (f *Feature) Value(name string) any {
	i := f.Schema.Index(name)
	if i < 0 || i >= len(f.Values) {
		return nil
	}
	return f.Values[i]
}

// StringValue formats the named column the way attribute text is
// rendered: nil becomes the empty string, times become RFC 3339.
func (f *Feature) StringValue(name string) string {
	return FormatValue(f.Value(name))
}

// FloatValue parses the named column as a number.
func (f *Feature) FloatValue(name string) (float64, bool) {
	switch v := f.Value(name).(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}

// SinkHandle is an opaque per-layer handle returned by CreateSchema.
type SinkHandle any

// Sink receives imported features. CreateSchema is called exactly once
// per geometry kind, lazily, before the first feature of that kind.
type Sink interface {
	CreateSchema(kind GeomKind, schema Schema) (SinkHandle, error)
	AddFeature(h SinkHandle, f *Feature) error
	Close() error
}

// Source iterates the features of one layer of a feature store. Next
// returns io.EOF when the sequence is exhausted. Count may return 0
// when the store cannot cheaply report it.
type Source interface {
	Name() string
	Kind() GeomKind
	CRS() CRS
	Schema() Schema
	Count() int
	Next() (*Feature, error)
	Close() error
}

// Rewinder is implemented by sources that can restart iteration, which
// the exporter needs when a symbology profile asks for data-driven
// classification.
type Rewinder interface {
	Reset() error
}

// Orderer is implemented by sources that can iterate sorted by one
// column. Folder grouping on export relies on equal values arriving
// consecutively.
type Orderer interface {
	OrderBy(field string) error
}

// ZAware is implemented by sources that know whether their geometries
// carry elevations. A source without it is assumed to carry them.
type ZAware interface {
	HasZ() bool
}
