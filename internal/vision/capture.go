// Package vision provides camera capture and OCR collaborators.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"sightspeak/internal/common/fsutil"
)

// JPEGQuality is the compression level for frames sent to the model.
const JPEGQuality = 40

// ErrNoFrame is returned when no still is available.
var ErrNoFrame = errors.New("vision: no frame available")

// Capturer returns the current camera frame as a JPEG.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// FileCapturer reads a still written by an external camera process (JPEG,
// PNG or WebP), scales it to Width pixels wide and re-encodes it.
type FileCapturer struct {
	Path  string
	Width int
}

func (c FileCapturer) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := fsutil.ExpandHome(c.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoFrame, p)
		}
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("vision: decode %s: %w", p, err)
	}
	return EncodeJPEG(Scale(img, c.Width))
}

// Scale resizes img to width w keeping the aspect ratio. Images already
// narrower than w, or w <= 0, are returned unchanged.
func Scale(img image.Image, w int) image.Image {
	b := img.Bounds()
	if w <= 0 || b.Dx() <= w {
		return img
	}
	h := b.Dy() * w / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG compresses img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("vision: encode: %w", err)
	}
	return buf.Bytes(), nil
}
