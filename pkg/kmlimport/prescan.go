package kmlimport

import (
	"encoding/xml"
	"io"
	"sort"

	"kmlconv/pkg/feedback"
)

// prescanExtendedData is the first pass over a document: it only
// collects the set of extended-attribute names, because the output
// schema has to be fixed before the first row is produced. A document
// that cannot be parsed at all yields the empty set; the main pass then
// recovers on its own terms.
func prescanExtendedData(r io.Reader, fb feedback.Feedback) []string {
	aliases := schemaAliases{}
	names := map[string]struct{}{}
	dec := newDecoder(r)
	depth := 0 // nesting depth of ExtendedData elements

	for {
		if fb.IsCanceled() {
			break
		}
		tok, err := dec.Token()
		if err != nil {
			break // io.EOF or malformed markup: keep what we have
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Schema" {
				declareFromAttrs(aliases, t.Attr)
			}
			switch aliases.resolve(t.Name.Local) {
			case "ExtendedData":
				depth++
			case "Data":
				if depth > 0 {
					if n := attrValue(t.Attr, "name"); n != "" {
						names[n] = struct{}{}
					}
				}
			}
		case xml.EndElement:
			if aliases.resolve(t.Name.Local) == "ExtendedData" && depth > 0 {
				depth--
			}
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	// Pass unknown charsets through untouched rather than failing the
	// whole document.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec
}

func attrValue(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func declareFromAttrs(t schemaAliases, attrs []xml.Attr) {
	t.declare(attrValue(attrs, "name"), attrValue(attrs, "parent"))
}
