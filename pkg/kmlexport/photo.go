package kmlexport

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	// Decoder registrations for the photo formats beyond the stdlib set.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/png"
)

const photoJPEGQuality = 85

// photoStore embeds referenced photos under files/ exactly once per
// source path, with collision-safe archive names. When maxDim is
// positive, oversized photos are scaled down and re-encoded before
// embedding.
type photoStore struct {
	maxDim  int
	byPath  map[string]string
	names   map[string]bool
	files   map[string][]byte
}

func newPhotoStore(maxDim int) *photoStore {
	return &photoStore{
		maxDim: maxDim,
		byPath: map[string]string{},
		names:  map[string]bool{},
		files:  map[string][]byte{},
	}
}

func (s *photoStore) Files() map[string][]byte { return s.files }

// Add returns the archive href of a photo, embedding it on first use.
// A missing or unreadable file yields an empty href, not an error; the
// feature simply exports without its photo.
func (s *photoStore) Add(path string) string {
	if path == "" {
		return ""
	}
	if href, ok := s.byPath[path]; ok {
		return href
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		s.byPath[path] = ""
		return ""
	}
	base := filepath.Base(path)
	if s.maxDim > 0 {
		if scaled, ok := s.downscale(raw); ok {
			raw = scaled
			base = base[:len(base)-len(filepath.Ext(base))] + ".jpg"
		}
	}
	name := s.uniqueName(base)
	s.names[name] = true
	s.files[name] = raw
	s.byPath[path] = name
	return name
}

func (s *photoStore) uniqueName(base string) string {
	name := "files/" + base
	for n := 1; s.names[name]; n++ {
		name = fmt.Sprintf("files/%d_%s", n, base)
	}
	return name
}

func (s *photoStore) downscale(raw []byte) ([]byte, bool) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= s.maxDim && h <= s.maxDim {
		return nil, false
	}
	if w >= h {
		h = h * s.maxDim / w
		w = s.maxDim
	} else {
		w = w * s.maxDim / h
		h = s.maxDim
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: photoJPEGQuality}); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
