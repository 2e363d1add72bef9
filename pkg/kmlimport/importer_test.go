package kmlimport

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kmlconv/pkg/feedback"
	"kmlconv/pkg/model"
)

type memLayer struct {
	schema model.Schema
	rows   []*model.Feature
}

type memSink struct {
	layers map[model.GeomKind]*memLayer
	closed bool
}

func newMemSink() *memSink {
	return &memSink{layers: map[model.GeomKind]*memLayer{}}
}

func (s *memSink) CreateSchema(kind model.GeomKind, schema model.Schema) (model.SinkHandle, error) {
	l := &memLayer{schema: schema}
	s.layers[kind] = l
	return l, nil
}

func (s *memSink) AddFeature(h model.SinkHandle, f *model.Feature) error {
	h.(*memLayer).rows = append(h.(*memLayer).rows, f)
	return nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
<Document>
 <Folder><name>Alps</name>
  <Folder><name>Huts</name>
   <Placemark>
    <name>Hut A</name>
    <description>first hut</description>
    <ExtendedData>
     <Data name="elevation_band"><value>high</value></Data>
     <Data name="category"><value>shelter</value></Data>
    </ExtendedData>
    <TimeStamp><when>2021-06-01T10:00:00Z</when></TimeStamp>
    <Point>
     <altitudeMode>absolute</altitudeMode>
     <coordinates>10.5,47.25,2100</coordinates>
    </Point>
   </Placemark>
   <Placemark>
    <name>Both huts</name>
    <MultiGeometry>
     <Point><coordinates>10.1,47.1,1900</coordinates></Point>
     <Point><coordinates>10.2,47.2,2000</coordinates></Point>
    </MultiGeometry>
   </Placemark>
  </Folder>
  <Placemark>
   <name>Ridge</name>
   <TimeSpan><begin>2021-06-01</begin><end>2021-06-03</end></TimeSpan>
   <LineString><coordinates>10.0,47.0,0 10.1,47.05,0 10.2,47.1,0</coordinates></LineString>
  </Placemark>
  <Placemark>
   <name>Lake</name>
   <Polygon>
    <outerBoundaryIs><LinearRing><coordinates>10,47 10.1,47 10.1,47.1 10,47.1 10,47</coordinates></LinearRing></outerBoundaryIs>
    <innerBoundaryIs><LinearRing><coordinates>10.04,47.04 10.06,47.04 10.06,47.06 10.04,47.04</coordinates></LinearRing></innerBoundaryIs>
   </Polygon>
  </Placemark>
 </Folder>
</Document>
</kml>`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestImportFile(t *testing.T) {
	sink := newMemSink()
	res, err := New(Options{}, feedback.Discard{}).
		ImportFile(writeTemp(t, "sample.kml", sampleDoc), sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Partial {
		t.Error("well-formed document flagged partial")
	}
	if want := []string{"category", "elevation_band"}; !equalStrings(res.Columns, want) {
		t.Errorf("columns = %v, want %v", res.Columns, want)
	}
	if res.Counts[model.PointKind] != 3 {
		t.Errorf("points = %d, want 3", res.Counts[model.PointKind])
	}
	if res.Counts[model.LineKind] != 1 || res.Counts[model.PolygonKind] != 1 {
		t.Errorf("lines/polygons = %d/%d, want 1/1",
			res.Counts[model.LineKind], res.Counts[model.PolygonKind])
	}

	pts := sink.layers[model.PointKind]
	first := pts.rows[0]
	if got := first.StringValue("name"); got != "Hut A" {
		t.Errorf("name = %q", got)
	}
	if got := first.StringValue("folders"); got != "Alps; Huts" {
		t.Errorf("folders = %q", got)
	}
	if got := first.StringValue("alt_mode"); got != "absolute" {
		t.Errorf("alt_mode = %q", got)
	}
	if got := first.StringValue("time_when"); got != "2021-06-01T10:00:00Z" {
		t.Errorf("time_when = %q", got)
	}
	if alt, ok := first.FloatValue("altitude"); !ok || alt != 2100 {
		t.Errorf("altitude = %v, %v", alt, ok)
	}
	if got := first.StringValue("elevation_band"); got != "high" {
		t.Errorf("elevation_band = %q", got)
	}

	// Multi-point record becomes one feature per coordinate, each
	// carrying its own altitude.
	if a, _ := pts.rows[1].FloatValue("altitude"); a != 1900 {
		t.Errorf("second point altitude = %v", a)
	}
	if a, _ := pts.rows[2].FloatValue("altitude"); a != 2000 {
		t.Errorf("third point altitude = %v", a)
	}

	line := sink.layers[model.LineKind].rows[0]
	if got := line.StringValue("folders"); got != "Alps" {
		t.Errorf("line folders = %q", got)
	}
	if got := line.StringValue("time_begin"); got != "2021-06-01" {
		t.Errorf("time_begin = %q", got)
	}
	if n := len(line.Geom.Lines); n != 1 || len(line.Geom.Lines[0]) != 3 {
		t.Errorf("line parts = %d", n)
	}

	poly := sink.layers[model.PolygonKind].rows[0].Geom.Polygons[0]
	if len(poly.Exterior) != 5 || len(poly.Interiors) != 1 {
		t.Errorf("polygon rings = %d exterior, %d interior",
			len(poly.Exterior), len(poly.Interiors))
	}
}

func TestImportSkipKinds(t *testing.T) {
	sink := newMemSink()
	res, err := New(Options{SkipPoints: true, SkipPolygons: true}, nil).
		ImportFile(writeTemp(t, "sample.kml", sampleDoc), sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts[model.PointKind] != 0 || res.Counts[model.PolygonKind] != 0 {
		t.Errorf("skipped kinds still counted: %v", res.Counts)
	}
	if res.Counts[model.LineKind] != 1 {
		t.Errorf("lines = %d, want 1", res.Counts[model.LineKind])
	}
}

func TestImportAliasedElements(t *testing.T) {
	doc := `<kml>
<Schema name="pm" parent="Placemark"/>
<Schema name="pm2" parent="pm"/>
<Document>
 <pm2><name>aliased</name><Point><coordinates>1,2,3</coordinates></Point></pm2>
 <kml:Placemark><name>prefixed</name><Point><kml:coordinates>4,5,6</kml:coordinates></Point></kml:Placemark>
</Document>
</kml>`
	sink := newMemSink()
	res, err := New(Options{}, nil).ImportFile(writeTemp(t, "alias.kml", doc), sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts[model.PointKind] != 2 {
		t.Fatalf("points = %d, want 2", res.Counts[model.PointKind])
	}
	rows := sink.layers[model.PointKind].rows
	if rows[0].StringValue("name") != "aliased" || rows[1].StringValue("name") != "prefixed" {
		t.Errorf("names = %q, %q", rows[0].StringValue("name"), rows[1].StringValue("name"))
	}
}

func TestImportLocationElement(t *testing.T) {
	doc := `<kml><Document>
<Placemark><name>loc</name>
 <Location><longitude>11.5</longitude><latitude>46.5</latitude><altitude>800</altitude></Location>
</Placemark>
<Placemark><name>bad</name>
 <Location><longitude>oops</longitude><latitude>46.5</latitude></Location>
</Placemark>
</Document></kml>`
	sink := newMemSink()
	res, err := New(Options{}, nil).ImportFile(writeTemp(t, "loc.kml", doc), sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts[model.PointKind] != 1 {
		t.Fatalf("points = %d, want 1", res.Counts[model.PointKind])
	}
	f := sink.layers[model.PointKind].rows[0]
	v := f.Geom.Points[0]
	if v.X != 11.5 || v.Y != 46.5 || v.Z != 800 {
		t.Errorf("vertex = %v", v)
	}
}

func TestImportMalformedKeepsPartial(t *testing.T) {
	// Document truncated mid-element after one complete placemark.
	doc := `<kml><Document>
<Placemark><name>ok</name><Point><coordinates>1,2</coordinates></Point></Placemark>
<Placemark><name>cut</name><Point><coordinates>3,4`
	sink := newMemSink()
	res, err := New(Options{}, nil).ImportFile(writeTemp(t, "trunc.kml", doc), sink)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Partial {
		t.Error("truncated document not flagged partial")
	}
	if res.Counts[model.PointKind] != 1 {
		t.Errorf("points = %d, want 1", res.Counts[model.PointKind])
	}
}

func TestImportKMZ(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sample.kmz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"files/readme.txt": "not markup",
		"doc.kml":          sampleDoc,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sink := newMemSink()
	res, err := New(Options{}, nil).ImportFile(p, sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts[model.PointKind] != 3 {
		t.Errorf("points = %d, want 3", res.Counts[model.PointKind])
	}
}

func TestImportKMZNoEntry(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.kmz")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("notes.txt")
	w.Write([]byte("nothing here"))
	zw.Close()
	f.Close()

	_, err = New(Options{}, nil).ImportFile(p, newMemSink())
	var nee *NoEntryError
	if !errors.As(err, &nee) {
		t.Fatalf("err = %v, want NoEntryError", err)
	}
}

func TestImportCancellation(t *testing.T) {
	fb := feedback.New(func() bool { return true })
	sink := newMemSink()
	_, err := New(Options{}, fb).
		ImportFile(writeTemp(t, "sample.kml", sampleDoc), sink)
	if err != ErrCanceled {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if len(sink.layers) != 0 {
		t.Errorf("canceled before the main pass, layers = %d", len(sink.layers))
	}
}

func TestPrescanExtendedData(t *testing.T) {
	cols := prescanExtendedData(strings.NewReader(sampleDoc), feedback.Discard{})
	if want := []string{"category", "elevation_band"}; !equalStrings(cols, want) {
		t.Errorf("cols = %v, want %v", cols, want)
	}

	if cols := prescanExtendedData(strings.NewReader("<<< not xml"), feedback.Discard{}); len(cols) != 0 {
		t.Errorf("garbage input produced columns %v", cols)
	}

	// Data outside ExtendedData is not an attribute.
	loose := `<kml><Data name="stray"><value>x</value></Data></kml>`
	if cols := prescanExtendedData(strings.NewReader(loose), feedback.Discard{}); len(cols) != 0 {
		t.Errorf("stray Data produced columns %v", cols)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
