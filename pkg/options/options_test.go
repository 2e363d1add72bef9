package options

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kmlconv/pkg/symbology"
)

func TestDefaultExport(t *testing.T) {
	e := DefaultExport()
	if e.NameField != "name" || e.AltitudeField != "altitude" || e.AltitudeModeField != "alt_mode" {
		t.Errorf("field defaults: %+v", e)
	}
	if !e.LineBreaks || e.LineWidthFactor != 2 {
		t.Errorf("rendering defaults: %+v", e)
	}
	if e.Stamp.Field != "time_when" || e.Begin.Field != "time_begin" || e.End.Field != "time_end" {
		t.Errorf("time defaults: %+v", e)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestLoadExport(t *testing.T) {
	profile := `
name_field: station
line_width_factor: 3
altitude: attribute
altitude_mode: absolute
folder_field: region
stamp:
  date_field: obs_date
  time_field: obs_time
style:
  mode: graduated
  field: depth
  classify:
    count: 4
    method: quantile
    ramp: viridis
`
	p := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(p, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := LoadExport(p)
	if err != nil {
		t.Fatal(err)
	}
	if e.NameField != "station" || e.LineWidthFactor != 3 || e.FolderField != "region" {
		t.Errorf("loaded = %+v", e)
	}
	if e.Altitude != AltitudeAttribute || e.AltitudeMode != "absolute" {
		t.Errorf("altitude = %q %q", e.Altitude, e.AltitudeMode)
	}
	// Unset keys keep their defaults.
	if e.AltitudeField != "altitude" || !e.LineBreaks {
		t.Errorf("defaults lost: %+v", e)
	}
	if e.Stamp.Field != "time_when" || e.Stamp.DateField != "obs_date" || e.Stamp.TimeField != "obs_time" {
		t.Errorf("stamp = %+v", e.Stamp)
	}
	if e.Style == nil || e.Style.Mode != symbology.ModeGraduated || e.Style.Classify.Count != 4 {
		t.Errorf("style = %+v", e.Style)
	}
}

func TestValidate(t *testing.T) {
	e := DefaultExport()
	e.Altitude = "barometric"
	if err := e.Validate(); err == nil {
		t.Error("bad altitude interpretation accepted")
	}
	e = DefaultExport()
	e.AltitudeMode = "floating"
	if err := e.Validate(); err == nil {
		t.Error("bad altitude mode accepted")
	}
	e = DefaultExport()
	e.GoogleIcon = "Nonexistent icon"
	if err := e.Validate(); err == nil {
		t.Error("bad icon accepted")
	}
}

func TestResolveGoogleIcon(t *testing.T) {
	href, err := ResolveGoogleIcon("Donut")
	if err != nil || !strings.HasSuffix(href, "shapes/donut.png") {
		t.Errorf("Donut = %q, %v", href, err)
	}
	if href, err := ResolveGoogleIcon("paddle:A"); err != nil || href == "" {
		t.Errorf("paddle = %q, %v", href, err)
	}
	if href, err := ResolveGoogleIcon("palette:2:18"); err != nil || href == "" {
		t.Errorf("palette = %q, %v", href, err)
	}
	if _, err := ResolveGoogleIcon("palette:x:y"); err == nil {
		t.Error("bad palette selector accepted")
	}
	if _, err := ResolveGoogleIcon("whatever"); err == nil {
		t.Error("unknown name accepted")
	}
}
