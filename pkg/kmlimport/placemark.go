package kmlimport

import (
	"encoding/xml"
	"strings"

	"kmlconv/pkg/model"
)

// Builtin attribute columns every imported feature carries, ahead of
// the discovered extended columns.
var builtinColumns = []model.Field{
	{Name: "name", Type: model.StringField},
	{Name: "folders", Type: model.StringField},
	{Name: "description", Type: model.StringField},
	{Name: "altitude", Type: model.DoubleField},
	{Name: "alt_mode", Type: model.StringField},
	{Name: "time_begin", Type: model.StringField},
	{Name: "time_end", Type: model.StringField},
	{Name: "time_when", Type: model.StringField},
}

// ImportSchema is the fixed column set of an imported layer: the
// builtin columns followed by the sorted extended-attribute columns.
func ImportSchema(extColumns []string) model.Schema {
	s := make(model.Schema, 0, len(builtinColumns)+len(extColumns))
	s = append(s, builtinColumns...)
	for _, n := range extColumns {
		s = append(s, model.Field{Name: n, Type: model.StringField})
	}
	return s
}

// Parser context. An explicit stack of these replaces the nest of
// boolean flags the event callbacks would otherwise need.
type ctx int

const (
	ctxPlacemark ctx = iota
	ctxPoint
	ctxLineString
	ctxPolygon
	ctxOuterBoundary
	ctxInnerBoundary
	ctxLocation
	ctxTimeSpan
	ctxTimeStamp
	ctxExtendedData
	ctxData
)

// Where character data currently accumulates.
type textTarget int

const (
	textNone textTarget = iota
	textFolderName
	textName
	textDescription
	textCoordinates
	textLongitude
	textLatitude
	textAltitude
	textAltitudeMode
	textBegin
	textEnd
	textWhen
	textDataValue
)

// Per-record accumulator, reset at every record open.
type record struct {
	name        string
	description string
	coord       string
	lon         string
	lat         string
	alt         string
	altMode     string
	begin       string
	end         string
	when        string
	dataName    string
	dataValue   string
	ext         map[string]string
	points      []model.Vertex
	lines       [][]model.Vertex
	polys       []model.Polygon
	outer       string
	inners      []string
}

type placemarkParser struct {
	aliases  schemaAliases
	ext      []string
	extIndex map[string]int

	skipPoints   bool
	skipLines    bool
	skipPolygons bool

	emit func(kind model.GeomKind, f *model.Feature)

	schema model.Schema

	folders         []string
	awaitFolderName bool
	folderName      string

	stack []ctx
	text  textTarget

	rec record
}

func newPlacemarkParser(extColumns []string, skipPt, skipLine, skipPoly bool,
	emit func(model.GeomKind, *model.Feature)) *placemarkParser {

	p := &placemarkParser{
		aliases:      schemaAliases{},
		ext:          extColumns,
		extIndex:     make(map[string]int, len(extColumns)),
		skipPoints:   skipPt,
		skipLines:    skipLine,
		skipPolygons: skipPoly,
		emit:         emit,
		schema:       ImportSchema(extColumns),
	}
	for i, n := range extColumns {
		p.extIndex[n] = i
	}
	p.resetRecord()
	return p
}

func (p *placemarkParser) resetRecord() {
	p.rec = record{ext: map[string]string{}}
	p.text = textNone
}

func (p *placemarkParser) in(c ctx) bool {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i] == c {
			return true
		}
	}
	return false
}

func (p *placemarkParser) push(c ctx) { p.stack = append(p.stack, c) }

// pop removes the nearest occurrence of c and everything above it.
// Malformed input may close elements that never opened; popping is
// clamped rather than trusted.
func (p *placemarkParser) pop(c ctx) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i] == c {
			p.stack = p.stack[:i]
			return
		}
	}
}

func (p *placemarkParser) startElement(t xml.StartElement) {
	if t.Name.Local == "Schema" {
		declareFromAttrs(p.aliases, t.Attr)
	}
	base := p.aliases.resolve(t.Name.Local)

	switch {
	case base == "Folder":
		p.folders = append(p.folders, "")
		p.awaitFolderName = true

	case base == "Placemark":
		p.resetRecord()
		p.stack = p.stack[:0]
		p.push(ctxPlacemark)

	case p.in(ctxPlacemark):
		p.startInPlacemark(base, t.Attr)

	case p.awaitFolderName && base == "name":
		p.folderName = ""
		p.text = textFolderName
	}
}

func (p *placemarkParser) startInPlacemark(base string, attrs []xml.Attr) {
	switch base {
	case "Point":
		p.push(ctxPoint)
	case "LineString":
		p.push(ctxLineString)
	case "Polygon":
		p.push(ctxPolygon)
	case "outerBoundaryIs":
		p.push(ctxOuterBoundary)
		p.rec.coord = ""
	case "innerBoundaryIs":
		p.push(ctxInnerBoundary)
		p.rec.coord = ""
	case "Location":
		p.push(ctxLocation)
	case "TimeSpan":
		p.push(ctxTimeSpan)
	case "TimeStamp":
		p.push(ctxTimeStamp)
	case "ExtendedData":
		p.push(ctxExtendedData)
	case "Data":
		if p.in(ctxExtendedData) {
			p.push(ctxData)
			p.rec.dataName = attrValue(attrs, "name")
		}
	case "value":
		if p.in(ctxData) {
			p.text = textDataValue
		}
	case "name":
		p.rec.name = ""
		p.text = textName
	case "description":
		p.rec.description = ""
		p.text = textDescription
	case "coordinates":
		p.rec.coord = ""
		p.text = textCoordinates
	case "longitude":
		if p.in(ctxLocation) {
			p.rec.lon = ""
			p.text = textLongitude
		}
	case "latitude":
		if p.in(ctxLocation) {
			p.rec.lat = ""
			p.text = textLatitude
		}
	case "altitude":
		if p.in(ctxLocation) {
			p.rec.alt = ""
			p.text = textAltitude
		}
	case "altitudeMode":
		p.rec.altMode = ""
		p.text = textAltitudeMode
	case "begin":
		if p.in(ctxTimeSpan) {
			p.text = textBegin
		}
	case "end":
		if p.in(ctxTimeSpan) {
			p.text = textEnd
		}
	case "when":
		if p.in(ctxTimeStamp) {
			p.text = textWhen
		}
	}
}

func (p *placemarkParser) charData(data string) {
	switch p.text {
	case textFolderName:
		p.folderName += data
	case textName:
		p.rec.name += data
	case textDescription:
		p.rec.description += data
	case textCoordinates:
		p.rec.coord += data
	case textLongitude:
		p.rec.lon += data
	case textLatitude:
		p.rec.lat += data
	case textAltitude:
		p.rec.alt += data
	case textAltitudeMode:
		p.rec.altMode += data
	case textBegin:
		p.rec.begin += data
	case textEnd:
		p.rec.end += data
	case textWhen:
		p.rec.when += data
	case textDataValue:
		p.rec.dataValue += data
	}
}

func (p *placemarkParser) endElement(t xml.EndElement) {
	base := p.aliases.resolve(t.Name.Local)

	if p.in(ctxPlacemark) {
		p.endInPlacemark(base)
		return
	}

	switch {
	case base == "Folder":
		if len(p.folders) > 0 {
			p.folders = p.folders[:len(p.folders)-1]
		}
		p.awaitFolderName = false
	case base == "name" && p.text == textFolderName:
		if len(p.folders) > 0 {
			p.folders[len(p.folders)-1] = strings.TrimSpace(p.folderName)
		}
		p.awaitFolderName = false
		p.text = textNone
	}
}

func (p *placemarkParser) endInPlacemark(base string) {
	switch base {
	case "name":
		p.rec.name = strings.TrimSpace(p.rec.name)
		p.text = textNone
	case "description":
		p.rec.description = strings.TrimSpace(p.rec.description)
		p.text = textNone
	case "coordinates":
		p.text = textNone
		if p.in(ctxPolygon) {
			switch {
			case p.in(ctxOuterBoundary):
				p.rec.outer = strings.TrimSpace(p.rec.coord)
			case p.in(ctxInnerBoundary):
				p.rec.inners = append(p.rec.inners, strings.TrimSpace(p.rec.coord))
			}
		} else {
			p.rec.coord = strings.TrimSpace(p.rec.coord)
		}
	case "Point":
		p.processPoint()
		p.pop(ctxPoint)
	case "LineString":
		p.processLineString()
		p.pop(ctxLineString)
	case "Polygon":
		p.processPolygon()
		p.pop(ctxPolygon)
		p.rec.outer = ""
		p.rec.inners = nil
	case "outerBoundaryIs":
		p.pop(ctxOuterBoundary)
	case "innerBoundaryIs":
		p.pop(ctxInnerBoundary)
	case "longitude", "latitude", "altitude":
		p.text = textNone
	case "Location":
		p.processLocation()
		p.pop(ctxLocation)
	case "altitudeMode", "begin", "end", "when":
		p.text = textNone
	case "TimeSpan":
		p.pop(ctxTimeSpan)
	case "TimeStamp":
		p.pop(ctxTimeStamp)
	case "Data":
		p.pop(ctxData)
	case "value":
		if p.in(ctxData) {
			if p.rec.dataName != "" {
				p.rec.ext[p.rec.dataName] = strings.TrimSpace(p.rec.dataValue)
			}
			p.rec.dataValue = ""
			p.text = textNone
		}
	case "ExtendedData":
		p.pop(ctxExtendedData)
	case "Placemark":
		p.process()
		p.pop(ctxPlacemark)
		p.resetRecord()
	}
}

func (p *placemarkParser) processPoint() {
	if p.skipPoints {
		return
	}
	if v, ok := parsePoint(p.rec.coord); ok {
		p.rec.points = append(p.rec.points, v)
	}
}

func (p *placemarkParser) processLineString() {
	if p.skipLines {
		return
	}
	p.rec.lines = append(p.rec.lines, ParseCoordinates(p.rec.coord))
}

func (p *placemarkParser) processLocation() {
	if p.skipPoints {
		return
	}
	coord := strings.TrimSpace(p.rec.lon) + "," + strings.TrimSpace(p.rec.lat)
	if a := strings.TrimSpace(p.rec.alt); a != "" {
		coord += "," + a
	}
	if v, ok := parsePoint(coord); ok {
		p.rec.points = append(p.rec.points, v)
	}
	p.rec.lon, p.rec.lat, p.rec.alt = "", "", ""
}

func (p *placemarkParser) processPolygon() {
	if p.skipPolygons {
		return
	}
	poly := model.Polygon{Exterior: ParseCoordinates(p.rec.outer)}
	for _, inner := range p.rec.inners {
		poly.Interiors = append(poly.Interiors, ParseCoordinates(inner))
	}
	p.rec.polys = append(p.rec.polys, poly)
}

func (p *placemarkParser) folderString() string {
	var names []string
	for _, n := range p.folders {
		if n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, "; ")
}

func (p *placemarkParser) row(altitude float64) []any {
	row := make([]any, 0, len(p.schema))
	row = append(row,
		p.rec.name, p.folderString(), p.rec.description, altitude,
		strings.TrimSpace(p.rec.altMode),
		strings.TrimSpace(p.rec.begin),
		strings.TrimSpace(p.rec.end),
		strings.TrimSpace(p.rec.when))
	for _, n := range p.ext {
		row = append(row, p.rec.ext[n])
	}
	return row
}

// process emits the accumulated record: one feature per point, one
// (possibly multi-part) feature per geometry kind for lines and
// polygons.
func (p *placemarkParser) process() {
	for _, pt := range p.rec.points {
		f := &model.Feature{
			Geom:   model.Geometry{Kind: model.PointKind, Points: []model.Vertex{pt}},
			Schema: p.schema,
			Values: p.row(pt.Z),
		}
		p.emit(model.PointKind, f)
	}
	if len(p.rec.lines) > 0 {
		f := &model.Feature{
			Geom:   model.Geometry{Kind: model.LineKind, Lines: p.rec.lines},
			Schema: p.schema,
			Values: p.row(0),
		}
		p.emit(model.LineKind, f)
	}
	if len(p.rec.polys) > 0 {
		f := &model.Feature{
			Geom:   model.Geometry{Kind: model.PolygonKind, Polygons: p.rec.polys},
			Schema: p.schema,
			Values: p.row(0),
		}
		p.emit(model.PolygonKind, f)
	}
}
