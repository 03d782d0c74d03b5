package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded raster, about 160 MB as RGBA.
const DefaultMaxPixels = 40_000_000

var (
	ErrEmptyImage    = errors.New("pipeline: empty image data")
	ErrImageTooLarge = errors.New("pipeline: image dimensions exceed the pixel limit")
)

// Decode parses PNG, JPEG, GIF, BMP, TIFF or WebP bytes up to DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited reads the header first and refuses images larger than
// maxPixels before allocating the raster. maxPixels <= 0 disables the check.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", newError(KindInvalidImage, "decode", ErrEmptyImage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindInvalidImage, "decode", fmt.Errorf("decode image header: %w", err))
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, "", newError(KindInvalidImage, "decode", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", newError(KindInvalidImage, "decode", fmt.Errorf("decode image: %w", err))
	}
	if img.Bounds().Empty() {
		return nil, "", newError(KindInvalidImage, "decode", ErrEmptyImage)
	}
	return img, format, nil
}

func checkPixels(w, h int, maxPixels int64) error {
	if w <= 0 || h <= 0 {
		return ErrEmptyImage
	}
	if maxPixels > 0 && int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: %dx%d > %d", ErrImageTooLarge, w, h, maxPixels)
	}
	return nil
}
