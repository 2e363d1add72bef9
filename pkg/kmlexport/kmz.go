package kmlexport

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// writeKMZ writes the document and its auxiliary files as one archive,
// markup under doc.kml.
func writeKMZ(path string, doc root, files map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("doc.kml")
	if err == nil {
		err = doc.WriteIndent(w, "", "  ")
	}
	if err == nil {
		for _, name := range sortedNames(files) {
			var fw io.Writer
			if fw, err = zw.Create(name); err != nil {
				break
			}
			if _, err = fw.Write(files[name]); err != nil {
				break
			}
		}
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

// writeKML writes bare markup; auxiliary files land in a files/
// directory next to it so relative hrefs keep resolving.
func writeKML(path string, doc root, files map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = doc.WriteIndent(f, "", "  ")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	dir := filepath.Dir(path)
	for _, name := range sortedNames(files) {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, files[name], 0o644); err != nil {
			return err
		}
	}
	return nil
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
