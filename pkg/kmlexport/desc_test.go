package kmlexport

import (
	"strings"
	"testing"

	"kmlconv/pkg/model"
)

func descFeature() *model.Feature {
	schema := model.Schema{
		{Name: "name", Type: model.StringField},
		{Name: "notes", Type: model.StringField},
		{Name: "depth", Type: model.DoubleField},
	}
	return &model.Feature{
		Schema: schema,
		Values: []any{"Station <1>", "line one\nline two", 12.5},
	}
}

func TestBuildDescriptionSingleField(t *testing.T) {
	f := descFeature()
	got := buildDescription(f, []string{"name"}, true, "")
	if got != "Station &lt;1&gt;" {
		t.Errorf("single field = %q", got)
	}
	if got := buildDescription(f, []string{"name"}, true, "files/p.jpg"); !strings.HasPrefix(got, `<img src="files/p.jpg"`) {
		t.Errorf("photo prefix missing: %q", got)
	}
}

func TestBuildDescriptionTable(t *testing.T) {
	f := descFeature()
	got := buildDescription(f, []string{"name", "notes", "depth"}, true, "")
	if !strings.Contains(got, "<table>") {
		t.Errorf("no table: %q", got)
	}
	// Alternating rows: first and third carry the background.
	if strings.Count(got, "DDDDFF") != 2 {
		t.Errorf("background rows = %d, want 2: %q", strings.Count(got, "DDDDFF"), got)
	}
	if !strings.Contains(got, "line one<br/>line two") {
		t.Errorf("line breaks not converted: %q", got)
	}
	if !strings.Contains(got, "12.5") {
		t.Errorf("numeric value missing: %q", got)
	}

	got = buildDescription(f, []string{"name", "notes"}, false, "")
	if strings.Contains(got, "<br/>") {
		t.Errorf("line breaks added despite option: %q", got)
	}
}

func TestExtendedDataMirrorsFields(t *testing.T) {
	f := descFeature()
	if ed := extendedData(f, []string{"name"}); ed != nil {
		t.Error("single field should not mirror attributes")
	}
	if ed := extendedData(f, []string{"name", "depth"}); ed == nil {
		t.Error("multi field should mirror attributes")
	}
}

func TestStringElementMarshal(t *testing.T) {
	var b strings.Builder
	if err := (stringElement{name: "when", value: "2023-06"}).Write(&b); err != nil {
		t.Fatal(err)
	}
	if b.String() != "<when>2023-06</when>" {
		t.Errorf("got %q", b.String())
	}

	b.Reset()
	if err := (dataElement{name: "depth", value: "12.5"}).Write(&b); err != nil {
		t.Fatal(err)
	}
	want := `<Data name="depth"><displayName>depth</displayName><value>12.5</value></Data>`
	if b.String() != want {
		t.Errorf("got %q, want %q", b.String(), want)
	}
}
