// Package imageproc turns uploaded bytes into an upright RGB image.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels is the largest width×height Normalize decodes when no
// limit is given, a common decompression bomb threshold.
const DefaultMaxPixels = 178956970

var (
	ErrEmptyImage    = errors.New("empty image data")
	ErrImageTooLarge = errors.New("image too large")
)

// Normalized is a decoded, orientation-corrected image with an opaque alpha
// channel.
type Normalized struct {
	Image       *image.NRGBA
	Width       int
	Height      int
	Format      string
	Orientation int // EXIF tag value, 0 when absent or unreadable
}

// Normalize decodes data, corrects its orientation from EXIF and drops alpha.
// Images whose header declares more than maxPixels pixels are rejected before
// any pixel is decoded; maxPixels <= 0 means DefaultMaxPixels. Only decoding
// failures are returned; EXIF problems leave the image as is.
func Normalize(data []byte, maxPixels int) (*Normalized, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds the limit of %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file: %w", err)
	}

	orientation := readOrientation(data)
	img := applyOrientation(src, orientation)
	opaque(img)

	b := img.Bounds()
	return &Normalized{
		Image:       img,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Format:      format,
		Orientation: orientation,
	}, nil
}

// applyOrientation returns a copy of img rotated upright for EXIF tags 3, 6
// and 8. Every other tag, mirrored ones included, leaves the pixels as they
// are stored.
func applyOrientation(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

// opaque forces every alpha sample to 255, keeping the stored colour values.
func opaque(img *image.NRGBA) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xff
		}
	}
}
