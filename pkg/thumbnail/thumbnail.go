// Package thumbnail renders person photos into fixed-size PNG previews that are
// embedded in change log descriptions.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	// Registered decoders for uploaded photos.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultWidth  = 100
	DefaultHeight = 130

	// DefaultMaxPixels bounds the declared size of decoded sources.
	DefaultMaxPixels = 40_000_000

	// MediaType is the format of every generated thumbnail.
	MediaType = "image/png"
)

// ErrInvalidImage is returned for empty or undecodable input.
var ErrInvalidImage = errors.New("invalid image")

// ResizeMode selects how the source is mapped onto the target footprint.
type ResizeMode string

const (
	// ResizeStretch scales both axes independently to fill the footprint exactly.
	ResizeStretch ResizeMode = "stretch"
	// ResizeFit keeps the aspect ratio and centres the image on a transparent
	// canvas of the target footprint.
	ResizeFit ResizeMode = "fit"
)

// ParseResizeMode maps a configuration value onto a ResizeMode.
func ParseResizeMode(raw string) (ResizeMode, error) {
	switch ResizeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ResizeStretch:
		return ResizeStretch, nil
	case ResizeFit:
		return ResizeFit, nil
	default:
		return "", fmt.Errorf("unknown thumbnail mode %q", raw)
	}
}

// Options configures a Generator.
type Options struct {
	Width  int
	Height int
	Mode   ResizeMode
	// MaxPixels rejects sources whose declared width*height exceeds it.
	MaxPixels int64
}

// Generator produces PNG thumbnails.
type Generator struct {
	width     int
	height    int
	mode      ResizeMode
	maxPixels int64
	scaler    draw.Scaler
}

// New constructs a Generator, falling back to 100x130 stretch for zero values.
func New(opts Options) *Generator {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Mode == "" {
		opts.Mode = ResizeStretch
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Generator{
		width:     opts.Width,
		height:    opts.Height,
		mode:      opts.Mode,
		maxPixels: opts.MaxPixels,
		scaler:    draw.CatmullRom,
	}
}

// Size reports the output footprint.
func (g *Generator) Size() (width, height int) {
	return g.width, g.height
}

// Mode reports the configured resize policy.
func (g *Generator) Mode() ResizeMode {
	return g.mode
}

// Validate checks that data is a decodable raster image within the pixel
// limit and returns its format name.
func (g *Generator) Validate(data []byte) (string, error) {
	return g.inspect(data)
}

// inspect reads only the image header, so oversized sources are rejected
// before any pixel buffer is allocated.
func (g *Generator) inspect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrInvalidImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("%w: zero dimensions", ErrInvalidImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > g.maxPixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, g.maxPixels)
	}
	return format, nil
}

// Make decodes data, resizes it to the configured footprint and encodes PNG.
func (g *Generator) Make(data []byte) ([]byte, error) {
	if _, err := g.inspect(data); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrInvalidImage)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	g.scaler.Scale(dst, g.targetRect(bounds), src, bounds, draw.Over, nil)

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) targetRect(src image.Rectangle) image.Rectangle {
	full := image.Rect(0, 0, g.width, g.height)
	if g.mode != ResizeFit {
		return full
	}

	sw, sh := src.Dx(), src.Dy()
	// Compare sw/sh against width/height without floating point.
	w, h := g.width, g.height
	if sw*g.height > sh*g.width {
		h = max(1, sh*g.width/sw)
	} else {
		w = max(1, sw*g.height/sh)
	}
	x0 := (g.width - w) / 2
	y0 := (g.height - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}
