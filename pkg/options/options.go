// Package options holds the export profile: everything that shapes an
// output document apart from the features themselves. Profiles load
// from YAML; the zero profile (with defaults applied) produces a plain
// unstyled document.
package options

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/twpayne/go-kml/icon"

	"kmlconv/pkg/symbology"
)

// AltitudeModes are the vertical datums the document format knows.
var AltitudeModes = []string{"clampToGround", "relativeToGround", "absolute"}

// Altitude interpretation choices.
const (
	AltitudeNone      = "none"      // two dimensional output
	AltitudeGeometry  = "geometry"  // z from the geometry, attribute fallback
	AltitudeAttribute = "attribute" // attribute column only
)

// GoogleIcons maps the selectable built-in icon names to their hosted
// bitmaps.
var GoogleIcons = map[string]string{
	"Square placemark": "http://maps.google.com/mapfiles/kml/shapes/placemark_square.png",
	"Circle placemark": "http://maps.google.com/mapfiles/kml/shapes/placemark_circle.png",
	"Shaded dot":       "http://maps.google.com/mapfiles/kml/shapes/shaded_dot.png",
	"Donut":            "http://maps.google.com/mapfiles/kml/shapes/donut.png",
	"Polygon":          "http://maps.google.com/mapfiles/kml/shapes/polygon.png",
	"Open diamond":     "http://maps.google.com/mapfiles/kml/shapes/open-diamond.png",
	"Square":           "http://maps.google.com/mapfiles/kml/shapes/square.png",
	"Star":             "http://maps.google.com/mapfiles/kml/shapes/star.png",
	"Target":           "http://maps.google.com/mapfiles/kml/shapes/target.png",
	"Triangle":         "http://maps.google.com/mapfiles/kml/shapes/triangle.png",
}

// ResolveGoogleIcon turns an icon selector into an href. Besides the
// named bitmaps, "paddle:<id>" and "palette:<pal>:<icon>" address the
// hosted paddle and palette sets.
func ResolveGoogleIcon(name string) (string, error) {
	if href, ok := GoogleIcons[name]; ok {
		return href, nil
	}
	switch {
	case strings.HasPrefix(name, "paddle:"):
		return icon.PaddleHref(strings.TrimPrefix(name, "paddle:")), nil
	case strings.HasPrefix(name, "palette:"):
		parts := strings.Split(strings.TrimPrefix(name, "palette:"), ":")
		if len(parts) == 2 {
			pal, err1 := strconv.Atoi(parts[0])
			idx, err2 := strconv.Atoi(parts[1])
			if err1 == nil && err2 == nil {
				return icon.PaletteHref(pal, idx), nil
			}
		}
		return "", fmt.Errorf("bad palette icon %q", name)
	}
	return "", fmt.Errorf("unknown google icon %q", name)
}

// TimeBinding names the columns feeding one timestamp slot: either one
// combined column, or a date column plus an optional time column. The
// combined column wins when both are set on a feature.
type TimeBinding struct {
	Field     string `yaml:"field"`
	DateField string `yaml:"date_field"`
	TimeField string `yaml:"time_field"`
}

func (b TimeBinding) Empty() bool {
	return b.Field == "" && b.DateField == "" && b.TimeField == ""
}

// Export is one export profile.
type Export struct {
	NameField           string   `yaml:"name_field"`
	HiddenPolygonLabels bool     `yaml:"hidden_polygon_labels"`
	DescriptionFields   []string `yaml:"description_fields"`
	LineBreaks          bool     `yaml:"line_breaks"`
	GoogleIcon          string   `yaml:"google_icon"`
	LineWidthFactor     float64  `yaml:"line_width_factor"`
	FolderField         string   `yaml:"folder_field"`

	Altitude          string  `yaml:"altitude"`
	AltitudeMode      string  `yaml:"altitude_mode"`
	AltitudeModeField string  `yaml:"altitude_mode_field"`
	AltitudeField     string  `yaml:"altitude_field"`
	AltitudeAddend    float64 `yaml:"altitude_addend"`
	Extrude           bool    `yaml:"extrude"`

	Stamp TimeBinding `yaml:"stamp"`
	Begin TimeBinding `yaml:"begin"`
	End   TimeBinding `yaml:"end"`

	PhotoField  string `yaml:"photo_field"`
	PhotoMaxDim int    `yaml:"photo_max_dim"`

	Style *symbology.Config `yaml:"style"`
}

// DefaultExport mirrors the conventional import column names, so a
// freshly imported layer exports back without configuration.
func DefaultExport() Export {
	return Export{
		NameField:         "name",
		LineBreaks:        true,
		LineWidthFactor:   2,
		Altitude:          AltitudeGeometry,
		AltitudeMode:      "clampToGround",
		AltitudeModeField: "alt_mode",
		AltitudeField:     "altitude",
		Stamp:             TimeBinding{Field: "time_when"},
		Begin:             TimeBinding{Field: "time_begin"},
		End:               TimeBinding{Field: "time_end"},
	}
}

// LoadExport reads a YAML profile over the defaults.
func LoadExport(path string) (Export, error) {
	e := DefaultExport()
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("profile %s: %w", path, err)
	}
	return e, e.Validate()
}

func (e *Export) Validate() error {
	switch e.Altitude {
	case "", AltitudeNone, AltitudeGeometry, AltitudeAttribute:
	default:
		return fmt.Errorf("unknown altitude interpretation %q", e.Altitude)
	}
	if e.AltitudeMode != "" {
		ok := false
		for _, m := range AltitudeModes {
			if e.AltitudeMode == m {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unknown altitude mode %q", e.AltitudeMode)
		}
	}
	if e.GoogleIcon != "" {
		if _, err := ResolveGoogleIcon(e.GoogleIcon); err != nil {
			return err
		}
	}
	if e.LineWidthFactor < 0 {
		return fmt.Errorf("line width factor must not be negative")
	}
	return nil
}
