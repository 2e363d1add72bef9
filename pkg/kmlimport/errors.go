package kmlimport

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned when the caller's feedback reports
// cancellation mid-import.
var ErrCanceled = errors.New("import canceled")

// OpenError reports an input document that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// NoEntryError reports an archive with no markup document inside.
type NoEntryError struct {
	Path string
}

func (e *NoEntryError) Error() string {
	return fmt.Sprintf("%s: archive contains no kml entry", e.Path)
}
