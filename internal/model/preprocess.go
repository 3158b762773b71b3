package model

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// toCHW resizes img to size×size and lays it out as planar RGB float32
// scaled to [0,1], the layout the exported networks expect.
func toCHW(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := resized.Bounds()

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*size + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(bl) / 65535.0
		}
	}
	return data
}

// centerSquare crops the largest centred square out of img.
func centerSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == b.Dx() && side == b.Dy() {
		return img
	}
	return imaging.CropCenter(img, side, side)
}
