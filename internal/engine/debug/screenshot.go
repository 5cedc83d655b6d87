// Package debug provides viewer debugging aids.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/bmp"
)

// Formats maps a file extension to its encoder.
var Formats = map[string]func(io.Writer, image.Image) error{
	"png": png.Encode,
	"bmp": bmp.Encode,
}

// Screenshots writes frames read back from the GL framebuffer as image files.
type Screenshots struct {
	dir    string
	prefix string
	format string
	now    func() time.Time
	seq    int
}

// NewScreenshots saves PNGs into dir, naming files prefix_<timestamp>_<n>.png.
func NewScreenshots(dir, prefix string) *Screenshots {
	return &Screenshots{dir: dir, prefix: prefix, format: "png", now: time.Now}
}

// SetFormat selects one of Formats.
func (s *Screenshots) SetFormat(format string) error {
	if _, ok := Formats[format]; !ok {
		return fmt.Errorf("unknown screenshot format %q", format)
	}
	s.format = format
	return nil
}

// Filename returns the path the next capture will use.
func (s *Screenshots) Filename() string {
	name := fmt.Sprintf("%s_%s_%03d.%s", s.prefix, s.now().Format("2006-01-02_15-04-05"), s.seq, s.format)
	if s.dir != "" {
		name = filepath.Join(s.dir, name)
	}
	return name
}

// Save encodes bottom-up RGBA rows of width x height pixels and returns the
// written path.
func (s *Screenshots) Save(pixels []byte, width, height int) (string, error) {
	img, err := FlipRGBA(pixels, width, height)
	if err != nil {
		return "", err
	}
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	path := s.Filename()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := Formats[s.format](f, img); err != nil {
		return "", fmt.Errorf("encoding %s: %w", s.format, err)
	}
	s.seq++
	return path, nil
}

// FlipRGBA copies bottom-up rows, as GL reads them, into a top-down image.
func FlipRGBA(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: %dx%d needs %d bytes, got %d",
			width, height, width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}
