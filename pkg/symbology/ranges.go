package symbology

import (
	"fmt"
	"sort"

	"github.com/bmizerany/perks/quantile"
	"github.com/mazznoer/colorgrad"
)

func ramp(name string) (colorgrad.Gradient, error) {
	switch name {
	case "", "reds":
		return colorgrad.Reds(), nil
	case "rdylgn":
		return colorgrad.RdYlGn(), nil
	case "ylorrd":
		return colorgrad.YlOrRd(), nil
	case "viridis":
		return colorgrad.Viridis(), nil
	}
	return colorgrad.Gradient{}, fmt.Errorf("unknown color ramp %q", name)
}

// BuildRanges derives graduated ranges from a numeric column, either by
// equal intervals or by quantiles, coloring each class from a gradient
// ramp.
func BuildRanges(values []float64, c Classify) ([]Range, error) {
	count := c.Count
	if count <= 0 {
		count = 5
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no values to classify")
	}
	grad, err := ramp(c.Ramp)
	if err != nil {
		return nil, err
	}

	breaks := make([]float64, count+1)
	switch c.Method {
	case "", "equal":
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		for i := 0; i <= count; i++ {
			breaks[i] = lo + (hi-lo)*float64(i)/float64(count)
		}
	case "quantile":
		targets := make([]float64, 0, count+1)
		for i := 0; i <= count; i++ {
			targets = append(targets, float64(i)/float64(count))
		}
		q := quantile.NewTargeted(targets...)
		for _, v := range values {
			q.Insert(v)
		}
		for i := 0; i <= count; i++ {
			breaks[i] = q.Query(float64(i) / float64(count))
		}
		sort.Float64s(breaks)
	default:
		return nil, fmt.Errorf("unknown classification method %q", c.Method)
	}

	out := make([]Range, 0, count)
	for i := 0; i < count; i++ {
		sym := c.Symbol
		mid := (float64(i) + 0.5) / float64(count)
		r, g, b, _ := grad.At(mid).RGBA255()
		sym.Color = fmt.Sprintf("#%02x%02x%02x", r, g, b)
		sym.FillColor = sym.Color
		out = append(out, Range{
			Lower:  breaks[i],
			Upper:  breaks[i+1],
			Label:  fmt.Sprintf("%g - %g", breaks[i], breaks[i+1]),
			Symbol: sym,
		})
	}
	return out, nil
}
