package kmlexport

import (
	"encoding/xml"
	"io"

	kml "github.com/twpayne/go-kml"
)

const (
	kmlNS = "http://www.opengis.net/kml/2.2"
	gxNS  = "http://www.google.com/kml/ext/2.2"
)

// stringElement is a leaf element carrying pre-rendered text. The
// element library types its timestamp leaves as time.Time, which cannot
// express the partial-precision forms ("2023", "2023-06") the
// normalizer produces, and it has no gx extension leaves.
type stringElement struct {
	name  string
	value string
}

func (e stringElement) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: e.name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(e.value)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func (e stringElement) Write(w io.Writer) error {
	return writeElement(w, e, "", "")
}

func (e stringElement) WriteIndent(w io.Writer, prefix, indent string) error {
	return writeElement(w, e, prefix, indent)
}

// dataElement is <Data name="..."> with displayName and value children,
// the attribute form the import side reads names from.
type dataElement struct {
	name  string
	value string
}

func (e dataElement) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "Data"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "name"}, Value: e.name}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range []stringElement{
		{name: "displayName", value: e.name},
		{name: "value", value: e.value},
	} {
		if err := child.MarshalXML(enc, xml.StartElement{}); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func (e dataElement) Write(w io.Writer) error {
	return writeElement(w, e, "", "")
}

func (e dataElement) WriteIndent(w io.Writer, prefix, indent string) error {
	return writeElement(w, e, prefix, indent)
}

// root is the document element, declaring both the core and the gx
// extension namespace so label-visibility leaves stay valid.
type root struct {
	child kml.Element
}

func newRoot(child kml.Element) root { return root{child: child} }

func (r root) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "kml"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: kmlNS},
			{Name: xml.Name{Local: "xmlns:gx"}, Value: gxNS},
		},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.Encode(r.child); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func (r root) Write(w io.Writer) error {
	return r.WriteIndent(w, "", "")
}

func (r root) WriteIndent(w io.Writer, prefix, indent string) error {
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	return writeElement(w, r, prefix, indent)
}

func writeElement(w io.Writer, m xml.Marshaler, prefix, indent string) error {
	enc := xml.NewEncoder(w)
	enc.Indent(prefix, indent)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Flush()
}
