// Package featureio adds GeoJSON and shapefile feature stores alongside
// the sqlite one, plus spatial subsetting of any source.
package featureio

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"kmlconv/pkg/model"
)

// Memory is a fully materialized feature source. The GeoJSON and
// shapefile readers load into one, which makes Reset and OrderBy cheap.
type Memory struct {
	name   string
	kind   model.GeomKind
	crs    model.CRS
	schema model.Schema
	feats  []*model.Feature
	hasZ   bool
	pos    int
}

func NewMemory(name string, kind model.GeomKind, crs model.CRS,
	schema model.Schema, feats []*model.Feature) *Memory {
	m := &Memory{name: name, kind: kind, crs: crs, schema: schema, feats: feats}
	for _, f := range feats {
		if f.Geom.HasZ() {
			m.hasZ = true
			break
		}
	}
	return m
}

func (m *Memory) Name() string         { return m.name }
func (m *Memory) Kind() model.GeomKind { return m.kind }
func (m *Memory) CRS() model.CRS       { return m.crs }
func (m *Memory) Schema() model.Schema { return m.schema }
func (m *Memory) Count() int           { return len(m.feats) }
func (m *Memory) Close() error         { return nil }

// HasZ reports whether the loaded geometries carry elevations. The
// constructor scans for one; readers that know the format's
// dimensionality directly override it with SetHasZ.
func (m *Memory) HasZ() bool     { return m.hasZ }
func (m *Memory) SetHasZ(v bool) { m.hasZ = v }

func (m *Memory) Next() (*model.Feature, error) {
	if m.pos >= len(m.feats) {
		return nil, io.EOF
	}
	f := m.feats[m.pos]
	m.pos++
	return f, nil
}

func (m *Memory) Reset() error {
	m.pos = 0
	return nil
}

// OrderBy sorts by one column, numerically when both sides parse as
// numbers, lexically otherwise. The sort is stable so equal keys keep
// their load order.
func (m *Memory) OrderBy(field string) error {
	if m.schema.Index(field) < 0 {
		return fmt.Errorf("featureio: no column %q", field)
	}
	sort.SliceStable(m.feats, func(i, j int) bool {
		return valueLess(m.feats[i].Value(field), m.feats[j].Value(field))
	})
	return m.Reset()
}

func valueLess(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return model.FormatValue(a) < model.FormatValue(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
