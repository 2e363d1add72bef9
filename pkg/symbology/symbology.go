// Package symbology defines how exported features are classified and
// what each class looks like. A profile is compiled into a Renderer,
// which the document builder queries per feature; rendering marker
// bitmaps happens here too, so the builder never touches pixels.
package symbology

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

type Mode string

const (
	ModeNone        Mode = "none"
	ModeSingle      Mode = "single"
	ModeCategorized Mode = "categorized"
	ModeGraduated   Mode = "graduated"
)

// Symbol is the visual description of one class: marker shape and size
// for points, stroke width for lines, stroke plus fill for polygons.
// Colors take any css form (hex, names, rgb()).
type Symbol struct {
	Shape     string  `yaml:"shape"`
	Color     string  `yaml:"color"`
	FillColor string  `yaml:"fill_color"`
	Opacity   float64 `yaml:"opacity"`
	Size      float64 `yaml:"size"`
	Width     float64 `yaml:"width"`
}

type Category struct {
	Value  string `yaml:"value"`
	Label  string `yaml:"label"`
	Symbol Symbol `yaml:"symbol"`
}

type Range struct {
	Lower  float64 `yaml:"lower"`
	Upper  float64 `yaml:"upper"`
	Label  string  `yaml:"label"`
	Symbol Symbol  `yaml:"symbol"`
}

// Classify asks for graduated ranges to be derived from the data
// instead of being declared one by one.
type Classify struct {
	Count  int     `yaml:"count"`
	Method string  `yaml:"method"`
	Ramp   string  `yaml:"ramp"`
	Symbol Symbol  `yaml:"symbol"`
}

type Config struct {
	Mode       Mode       `yaml:"mode"`
	Field      string     `yaml:"field"`
	Symbol     Symbol     `yaml:"symbol"`
	Categories []Category `yaml:"categories"`
	Ranges     []Range    `yaml:"ranges"`
	Classify   *Classify  `yaml:"classify"`
}

// Entry is one compiled class.
type Entry struct {
	Value  string
	Lower  float64
	Upper  float64
	Label  string
	Symbol Symbol
}

// Renderer answers class membership queries for one compiled profile.
type Renderer struct {
	Mode       Mode
	Field      string
	Entries    []Entry
	defaultIdx int
}

func normalizeSymbol(s *Symbol) {
	if s.Shape == "" {
		s.Shape = "circle"
	}
	if s.Color == "" {
		s.Color = "#ff0000"
	}
	if s.Opacity <= 0 || s.Opacity > 1 {
		s.Opacity = 1
	}
	if s.Size <= 0 {
		s.Size = 2
	}
	if s.Width <= 0 {
		s.Width = 0.5
	}
	if s.FillColor == "" {
		s.FillColor = s.Color
	}
}

// Compile checks a profile and resolves it into a Renderer. For
// graduated profiles with a classify block, fieldValues supplies the
// numeric column to classify; it is only called in that case.
func Compile(cfg Config, fieldValues func() ([]float64, error)) (*Renderer, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeNone
	}
	r := &Renderer{Mode: mode, Field: cfg.Field, defaultIdx: -1}

	switch mode {
	case ModeNone:
		return r, nil

	case ModeSingle:
		sym := cfg.Symbol
		normalizeSymbol(&sym)
		if err := checkSymbol(sym); err != nil {
			return nil, err
		}
		r.Entries = []Entry{{Symbol: sym}}
		return r, nil

	case ModeCategorized:
		if cfg.Field == "" {
			return nil, fmt.Errorf("categorized symbology needs a field")
		}
		if len(cfg.Categories) == 0 {
			return nil, fmt.Errorf("categorized symbology needs categories")
		}
		for i, c := range cfg.Categories {
			sym := c.Symbol
			normalizeSymbol(&sym)
			if err := checkSymbol(sym); err != nil {
				return nil, fmt.Errorf("category %q: %w", c.Value, err)
			}
			if c.Value == "" && r.defaultIdx < 0 {
				r.defaultIdx = i
			}
			r.Entries = append(r.Entries, Entry{Value: c.Value, Label: c.Label, Symbol: sym})
		}
		return r, nil

	case ModeGraduated:
		if cfg.Field == "" {
			return nil, fmt.Errorf("graduated symbology needs a field")
		}
		ranges := cfg.Ranges
		if len(ranges) == 0 {
			if cfg.Classify == nil {
				return nil, fmt.Errorf("graduated symbology needs ranges or a classify block")
			}
			if fieldValues == nil {
				return nil, fmt.Errorf("classify block needs data to classify")
			}
			values, err := fieldValues()
			if err != nil {
				return nil, err
			}
			if ranges, err = BuildRanges(values, *cfg.Classify); err != nil {
				return nil, err
			}
		}
		for _, rg := range ranges {
			sym := rg.Symbol
			normalizeSymbol(&sym)
			if err := checkSymbol(sym); err != nil {
				return nil, fmt.Errorf("range %g-%g: %w", rg.Lower, rg.Upper, err)
			}
			r.Entries = append(r.Entries, Entry{
				Lower: rg.Lower, Upper: rg.Upper, Label: rg.Label, Symbol: sym,
			})
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown symbology mode %q", mode)
}

func checkSymbol(s Symbol) error {
	switch s.Shape {
	case "circle", "square", "diamond", "triangle":
	default:
		return fmt.Errorf("unknown marker shape %q", s.Shape)
	}
	if _, err := csscolorparser.Parse(s.Color); err != nil {
		return fmt.Errorf("color %q: %w", s.Color, err)
	}
	if _, err := csscolorparser.Parse(s.FillColor); err != nil {
		return fmt.Errorf("fill color %q: %w", s.FillColor, err)
	}
	return nil
}

// CategoryIndex maps a classification value to its entry. An unknown
// value falls back to the default (empty-valued) category, else to the
// first declared one.
func (r *Renderer) CategoryIndex(value string) int {
	for i, e := range r.Entries {
		if e.Value == value {
			return i
		}
	}
	if r.defaultIdx >= 0 {
		return r.defaultIdx
	}
	if len(r.Entries) > 0 {
		return 0
	}
	return -1
}

// RangeIndex maps a numeric value to its range. Out-of-range values
// clamp to the nearest declared range so a stray measurement still gets
// drawn instead of vanishing from the output.
func (r *Renderer) RangeIndex(v float64) int {
	if len(r.Entries) == 0 {
		return -1
	}
	best, bestDist := -1, 0.0
	for i, e := range r.Entries {
		if v >= e.Lower && v <= e.Upper {
			return i
		}
		d := e.Lower - v
		if v > e.Upper {
			d = v - e.Upper
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Appearance is the comparable tuple of computed visual parameters.
// Entries that collapse to the same appearance share one output style.
type Appearance struct {
	Shape string
	Color string
	Fill  string
	Size  float64
	Width float64
}

func (r *Renderer) Appearance(i int) Appearance {
	s := r.Entries[i].Symbol
	return Appearance{
		Shape: s.Shape,
		Color: KMLColor(s.Color, s.Opacity),
		Fill:  KMLColor(s.FillColor, s.Opacity),
		Size:  s.Size,
		Width: s.Width,
	}
}

// KMLColor renders a css color as the document format's aabbggrr hex
// form, folding the symbol opacity into the alpha channel.
func KMLColor(css string, opacity float64) string {
	c, err := csscolorparser.Parse(css)
	if err != nil {
		return "ffffffff"
	}
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	r, g, b, a := c.RGBA255()
	return fmt.Sprintf("%02x%02x%02x%02x", uint8(float64(a)*opacity), b, g, r)
}

// RGBA returns the stroke color of a symbol as a color value usable in
// style elements directly.
func (s Symbol) RGBA() color.RGBA {
	return parseRGBA(s.Color, s.Opacity)
}

func (s Symbol) FillRGBA() color.RGBA {
	return parseRGBA(s.FillColor, s.Opacity)
}

func parseRGBA(css string, opacity float64) color.RGBA {
	c, err := csscolorparser.Parse(strings.TrimSpace(css))
	if err != nil {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	r, g, b, a := c.RGBA255()
	return color.RGBA{R: r, G: g, B: b, A: uint8(float64(a) * opacity)}
}
