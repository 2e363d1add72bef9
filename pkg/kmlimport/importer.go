// Package kmlimport reads KML and KMZ documents into vector features.
// The reader is stream oriented and deliberately forgiving: real-world
// documents come from many producers and a markup error late in a file
// should not throw away everything read before it.
package kmlimport

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path"
	"strings"

	"kmlconv/pkg/feedback"
	"kmlconv/pkg/model"
)

// Options selects which geometry kinds the importer keeps.
type Options struct {
	SkipPoints   bool
	SkipLines    bool
	SkipPolygons bool
}

// Result summarizes one import run.
type Result struct {
	Counts  map[model.GeomKind]int
	Columns []string
	Partial bool
}

type Importer struct {
	opts Options
	fb   feedback.Feedback
}

func New(opts Options, fb feedback.Feedback) *Importer {
	if fb == nil {
		fb = feedback.Discard{}
	}
	return &Importer{opts: opts, fb: fb}
}

// ImportFile imports a .kml or .kmz document into sink. Sink layers are
// created lazily, one per geometry kind actually present. The document
// is read twice: a pre-scan pins down the extended-attribute columns,
// then the main pass produces rows.
func (im *Importer) ImportFile(p string, sink model.Sink) (*Result, error) {
	open, size, cleanup, err := openDocument(p)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return im.run(open, size, sink)
}

// openDocument resolves the document behind path: a zip archive yields
// its doc.kml entry, else its first *.kml entry; anything that is not a
// zip is read as plain markup. The returned open function can be called
// once per pass.
func openDocument(p string) (open func() (io.ReadCloser, error), size int64, cleanup func(), err error) {
	zr, zerr := zip.OpenReader(p)
	if zerr == nil {
		entry := kmlEntry(zr)
		if entry == nil {
			zr.Close()
			return nil, 0, nil, &NoEntryError{Path: p}
		}
		return func() (io.ReadCloser, error) { return entry.Open() },
			int64(entry.UncompressedSize64),
			func() { zr.Close() }, nil
	}

	fi, serr := os.Stat(p)
	if serr != nil {
		return nil, 0, nil, &OpenError{Path: p, Err: serr}
	}
	return func() (io.ReadCloser, error) {
			f, oerr := os.Open(p)
			if oerr != nil {
				return nil, &OpenError{Path: p, Err: oerr}
			}
			return f, nil
		}, fi.Size(),
		func() {}, nil
}

func kmlEntry(zr *zip.ReadCloser) *zip.File {
	var first *zip.File
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if name == "doc.kml" {
			return f
		}
		if first == nil && strings.EqualFold(path.Ext(name), ".kml") {
			first = f
		}
	}
	return first
}

func (im *Importer) run(open func() (io.ReadCloser, error), size int64, sink model.Sink) (*Result, error) {
	r, err := open()
	if err != nil {
		return nil, err
	}
	cols := prescanExtendedData(r, im.fb)
	r.Close()
	if im.fb.IsCanceled() {
		return nil, ErrCanceled
	}

	res := &Result{Counts: map[model.GeomKind]int{}, Columns: cols}
	handles := map[model.GeomKind]model.SinkHandle{}
	var sinkErr error
	emit := func(kind model.GeomKind, f *model.Feature) {
		if sinkErr != nil {
			return
		}
		h, ok := handles[kind]
		if !ok {
			if h, sinkErr = sink.CreateSchema(kind, f.Schema); sinkErr != nil {
				return
			}
			handles[kind] = h
		}
		if sinkErr = sink.AddFeature(h, f); sinkErr == nil {
			res.Counts[kind]++
		}
	}

	parser := newPlacemarkParser(cols,
		im.opts.SkipPoints, im.opts.SkipLines, im.opts.SkipPolygons, emit)

	r, err = open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	dec := newDecoder(r)

	tokens := 0
	for {
		tok, terr := dec.Token()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			// Finish with what was read so far rather than failing
			// the run; the caller is told the output may be short.
			im.fb.Warn("markup error, results may be partial: %v", terr)
			res.Partial = true
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			parser.startElement(t)
		case xml.EndElement:
			parser.endElement(t)
			if parser.aliases.resolve(t.Name.Local) == "Placemark" && im.fb.IsCanceled() {
				return res, ErrCanceled
			}
		case xml.CharData:
			parser.charData(string(t))
		}
		if sinkErr != nil {
			return res, sinkErr
		}
		if tokens++; tokens%512 == 0 && size > 0 {
			im.fb.SetProgress(100 * float64(dec.InputOffset()) / float64(size))
		}
	}
	if sinkErr != nil {
		return res, sinkErr
	}
	im.fb.SetProgress(100)

	total := 0
	for _, n := range res.Counts {
		total += n
	}
	im.fb.Info("imported %d features (%d points, %d lines, %d polygons)",
		total, res.Counts[model.PointKind], res.Counts[model.LineKind],
		res.Counts[model.PolygonKind])
	return res, nil
}
