package kmlexport

import (
	"fmt"
	"html"
	"strings"

	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"

	kml "github.com/twpayne/go-kml"

	"kmlconv/pkg/model"
)

var htmlMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", mhtml.Minify)
	return m
}()

func attributeString(v any) string {
	return html.EscapeString(strings.TrimSpace(model.FormatValue(v)))
}

const photoImg = `<img src="%s" style="max-width:300;"/>`

// buildDescription renders the description of one feature. A single
// field exports its bare value; several fields build an HTML table with
// an alternating row background. A photo reference is prepended as an
// image tag.
func buildDescription(f *model.Feature, fields []string, lineBreaks bool, photoHref string) string {
	switch len(fields) {
	case 0:
		if photoHref == "" {
			return ""
		}
		return fmt.Sprintf(photoImg, photoHref)
	case 1:
		desc := attributeString(f.Value(fields[0]))
		if photoHref != "" {
			desc = fmt.Sprintf(photoImg+"<br/><br/>%s", photoHref, desc)
		}
		return desc
	}

	var b strings.Builder
	if photoHref != "" {
		fmt.Fprintf(&b, photoImg+"<br/><br/>", photoHref)
	}
	b.WriteString("<table>")
	for row, field := range fields {
		v := attributeString(f.Value(field))
		if lineBreaks {
			v = strings.ReplaceAll(strings.ReplaceAll(v, "\r\n", "\n"), "\n", "<br/>")
		}
		name := html.EscapeString(field)
		if row&1 == 1 {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", name, v)
		} else {
			fmt.Fprintf(&b, `<tr style="background-color:#DDDDFF;"><td>%s</td><td>%s</td></tr>`, name, v)
		}
	}
	b.WriteString("</table>")

	out, err := htmlMinifier.String("text/html", b.String())
	if err != nil {
		return b.String()
	}
	return out
}

// extendedData mirrors the description table into attribute rows, so an
// exported document re-imports with its columns intact. Single-field
// descriptions stay plain text only.
func extendedData(f *model.Feature, fields []string) kml.Element {
	if len(fields) < 2 {
		return nil
	}
	els := make([]kml.Element, 0, len(fields))
	for _, field := range fields {
		els = append(els, dataElement{name: field, value: attributeString(f.Value(field))})
	}
	return kml.ExtendedData(els...)
}
