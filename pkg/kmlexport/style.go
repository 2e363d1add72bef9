package kmlexport

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"

	kml "github.com/twpayne/go-kml"

	"kmlconv/pkg/model"
	"kmlconv/pkg/options"
	"kmlconv/pkg/symbology"
)

// Marker bitmaps are rendered at this many pixels per symbol size unit,
// with a floor so tiny symbols still come out usable.
const (
	iconPixelsPerUnit = 8
	minIconPixels     = 16
)

// styleCache resolves features to shared style references. It is built
// eagerly before the feature loop: one shared style per distinct
// appearance, so classification entries that look the same collapse
// into one output style, and one rasterized bitmap per distinct marker.
type styleCache struct {
	renderer *symbology.Renderer
	kind     model.GeomKind
	opts     *options.Export

	ids    []string // entry index -> style url
	styles []kml.Element
	files  map[string][]byte
}

func newStyleCache(r *symbology.Renderer, kind model.GeomKind, opts *options.Export) (*styleCache, error) {
	c := &styleCache{renderer: r, kind: kind, opts: opts, files: map[string][]byte{}}
	if r == nil || r.Mode == symbology.ModeNone {
		return c, nil
	}
	seen := map[symbology.Appearance]string{}
	icons := map[symbology.Appearance]string{}
	for i := range r.Entries {
		app := r.Appearance(i)
		if url, ok := seen[app]; ok {
			c.ids = append(c.ids, url)
			continue
		}
		id := fmt.Sprintf("style%d", len(seen))
		el, err := c.buildStyle(id, r.Entries[i].Symbol, app, icons)
		if err != nil {
			return nil, err
		}
		url := "#" + id
		seen[app] = url
		c.styles = append(c.styles, el)
		c.ids = append(c.ids, url)
	}
	return c, nil
}

// SharedStyles are the style elements for the document head.
func (c *styleCache) SharedStyles() []kml.Element { return c.styles }

// Files are the rasterized marker bitmaps keyed by archive name.
func (c *styleCache) Files() map[string][]byte { return c.files }

// StyleFor resolves one feature. ok false means no classification rule
// matched and the feature is to be left out of the document.
func (c *styleCache) StyleFor(f *model.Feature) (string, bool) {
	r := c.renderer
	if r == nil || r.Mode == symbology.ModeNone {
		return "", true
	}
	switch r.Mode {
	case symbology.ModeSingle:
		return c.ids[0], true
	case symbology.ModeCategorized:
		i := r.CategoryIndex(f.StringValue(r.Field))
		if i < 0 {
			return "", false
		}
		return c.ids[i], true
	case symbology.ModeGraduated:
		v, ok := f.FloatValue(r.Field)
		if !ok {
			return "", false
		}
		i := r.RangeIndex(v)
		if i < 0 {
			return "", false
		}
		return c.ids[i], true
	}
	return "", false
}

func (c *styleCache) buildStyle(id string, sym symbology.Symbol,
	app symbology.Appearance, icons map[symbology.Appearance]string) (kml.Element, error) {

	var children []kml.Element
	switch c.kind {
	case model.PointKind:
		if c.opts.GoogleIcon != "" {
			href, err := options.ResolveGoogleIcon(c.opts.GoogleIcon)
			if err != nil {
				return nil, err
			}
			children = append(children, kml.IconStyle(
				kml.Scale(sym.Size/10),
				kml.Icon(kml.Href(href)),
				kml.Color(sym.RGBA()),
			))
		} else {
			href, err := c.iconFile(sym, app, icons)
			if err != nil {
				return nil, err
			}
			// The bitmap already carries the symbol color; the style
			// color only applies the opacity.
			alpha := uint8(255 * sym.Opacity)
			children = append(children, kml.IconStyle(
				kml.Scale(sym.Size/15),
				kml.Icon(kml.Href(href)),
				kml.Color(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: alpha}),
			))
		}
		// Extruded tether lines inherit the marker color.
		children = append(children, kml.LineStyle(kml.Color(sym.RGBA())))

	case model.LineKind:
		ls := []kml.Element{
			kml.Color(sym.RGBA()),
			kml.Width(sym.Width * c.opts.LineWidthFactor),
		}
		if c.opts.NameField != "" {
			ls = append(ls, stringElement{name: "gx:labelVisibility", value: "1"})
		}
		children = append(children,
			kml.LineStyle(ls...),
			kml.PolyStyle(kml.Color(sym.RGBA())),
		)

	case model.PolygonKind:
		children = append(children,
			kml.LineStyle(
				kml.Color(sym.RGBA()),
				kml.Width(sym.Width*c.opts.LineWidthFactor),
			),
			kml.PolyStyle(kml.Color(sym.FillRGBA())),
		)
		if c.opts.NameField != "" && c.opts.HiddenPolygonLabels {
			children = append(children, kml.IconStyle(kml.Scale(0)))
		}
	}
	return kml.SharedStyle(id, children...), nil
}

func (c *styleCache) iconFile(sym symbology.Symbol, app symbology.Appearance,
	icons map[symbology.Appearance]string) (string, error) {

	if href, ok := icons[app]; ok {
		return href, nil
	}
	px := int(math.Ceil(sym.Size * iconPixelsPerUnit))
	if px < minIconPixels {
		px = minIconPixels
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, symbology.Rasterize(sym, px)); err != nil {
		return "", err
	}
	name := fmt.Sprintf("files/icon%d.png", len(icons))
	icons[app] = name
	c.files[name] = buf.Bytes()
	return name, nil
}
