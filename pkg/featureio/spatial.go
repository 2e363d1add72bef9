package featureio

import (
	"io"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"kmlconv/pkg/model"
)

// BBox is an axis-aligned extent in the source's own CRS.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Degenerate extents are widened so the r-tree accepts them.
const rectEpsilon = 0.0001

type indexedFeature struct {
	feature *model.Feature
	order   int
	bounds  BBox
}

func (f *indexedFeature) Bounds() rtreego.Rect {
	return rect(f.bounds)
}

func rect(b BBox) rtreego.Rect {
	w := b.MaxX - b.MinX
	h := b.MaxY - b.MinY
	if w < rectEpsilon {
		w = rectEpsilon
	}
	if h < rectEpsilon {
		h = rectEpsilon
	}
	r, _ := rtreego.NewRect(rtreego.Point{b.MinX, b.MinY}, []float64{w, h})
	return r
}

// Clip drains src and returns the features whose extent intersects box,
// in their original order, as a rewindable source. The whole input is
// indexed once; repeated Clip calls on large stores should reuse one
// materialized source instead.
func Clip(src model.Source, box BBox) (*Memory, error) {
	tree := rtreego.NewTree(2, 25, 50)
	order := 0
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if f.Geom.Empty() {
			continue
		}
		tree.Insert(&indexedFeature{feature: f, order: order, bounds: extent(&f.Geom)})
		order++
	}

	hits := tree.SearchIntersect(rect(box))
	picked := make([]*indexedFeature, 0, len(hits))
	for _, s := range hits {
		picked = append(picked, s.(*indexedFeature))
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].order < picked[j].order })

	feats := make([]*model.Feature, len(picked))
	for i, p := range picked {
		feats[i] = p.feature
	}
	sub := NewMemory(src.Name(), src.Kind(), src.CRS(), src.Schema(), feats)
	if za, ok := src.(model.ZAware); ok {
		sub.SetHasZ(za.HasZ())
	}
	return sub, nil
}

func extent(g *model.Geometry) BBox {
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	grow := func(vs []model.Vertex) {
		for _, v := range vs {
			b.MinX = math.Min(b.MinX, v.X)
			b.MinY = math.Min(b.MinY, v.Y)
			b.MaxX = math.Max(b.MaxX, v.X)
			b.MaxY = math.Max(b.MaxY, v.Y)
		}
	}
	grow(g.Points)
	for _, l := range g.Lines {
		grow(l)
	}
	for _, p := range g.Polygons {
		grow(p.Exterior)
		for _, hole := range p.Interiors {
			grow(hole)
		}
	}
	return b
}
