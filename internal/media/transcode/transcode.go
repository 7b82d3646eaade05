// Package transcode converts uploaded raster images to the web-friendly
// derived encoding stored next to every original.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"

	_ "golang.org/x/image/bmp" // Register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Derived encoding produced by ImageTranscoder.
const (
	DerivedExtension   = ".opt.jpg"
	DerivedContentType = "image/jpeg"
	DefaultQuality     = 80
	DefaultMaxEdge     = 1600
)

// Result is a transcoded image.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Transcoder re-encodes image bytes at a quality between 1 and 100.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, quality int) (*Result, error)
}

// ImageTranscoder decodes JPEG, PNG, GIF, WebP, BMP and TIFF, shrinks the
// image so neither edge exceeds MaxEdge, and encodes baseline JPEG.
type ImageTranscoder struct {
	maxEdge int
	logger  *slog.Logger
}

var _ Transcoder = (*ImageTranscoder)(nil)

// NewImageTranscoder creates a transcoder. maxEdge <= 0 uses DefaultMaxEdge.
func NewImageTranscoder(maxEdge int, logger *slog.Logger) *ImageTranscoder {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &ImageTranscoder{maxEdge: maxEdge, logger: logger}
}

// Transcode decodes data and re-encodes it as JPEG.
func (t *ImageTranscoder) Transcode(ctx context.Context, data []byte, quality int) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := flatten(fit(src, t.maxEdge))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	b := dst.Bounds()
	t.logger.Debug("transcoded image",
		"format", format,
		"src_width", src.Bounds().Dx(),
		"src_height", src.Bounds().Dy(),
		"width", b.Dx(),
		"height", b.Dy(),
		"in_bytes", len(data),
		"out_bytes", buf.Len(),
	)

	return &Result{
		Data:        buf.Bytes(),
		ContentType: DerivedContentType,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// ClampQuality maps out-of-range values onto 1..100; zero means DefaultQuality.
func ClampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}

// fit scales img down so its longest edge is at most maxEdge.
func fit(img image.Image, maxEdge int) image.Image {
	w, h := scaledSize(img.Bounds().Dx(), img.Bounds().Dy(), maxEdge)
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// scaledSize keeps the aspect ratio. Dimensions never drop below 1.
func scaledSize(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}

// flatten composites transparent pixels onto white. Line art with an alpha
// channel would otherwise turn black in JPEG.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
