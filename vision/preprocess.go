// Package vision holds the small amount of pixel work the bot needs before
// images go to the bridge.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Image preprocessing errors
var (
	ErrInvalidImage = errors.New("vision: invalid image data")
	ErrEmptyImage   = errors.New("vision: empty image data")
	ErrNoFrames     = errors.New("vision: gif has no frames")
)

// DecodeImage decodes PNG, JPEG, GIF or WebP data.
// This is a pure function with no side effects.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, nil
}

// Dimensions returns the width, height and format name without decoding
// pixel data.
func Dimensions(data []byte) (width, height int, format string, err error) {
	if len(data) == 0 {
		return 0, 0, "", ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// IsGIF reports whether data starts with a GIF signature.
func IsGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

// FirstFramePNG renders frame 0 of an animated or static GIF as PNG.
//
// The frame is drawn onto a transparent canvas the size of the GIF's logical
// screen, so frames smaller than the screen keep their offset.
func FirstFramePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(anim.Image) == 0 {
		return nil, ErrNoFrames
	}

	frame := anim.Image[0]
	bounds := image.Rect(0, 0, anim.Config.Width, anim.Config.Height)
	if bounds.Empty() {
		bounds = frame.Bounds()
	}

	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("vision: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
