// Package testutil builds in-memory image fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

var (
	Red  = color.NRGBA{R: 230, G: 20, B: 20, A: 255}
	Blue = color.NRGBA{R: 20, G: 20, B: 230, A: 255}
)

// Quadrants returns a w×h image whose top-left quadrant is Red and the rest Blue.
func Quadrants(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := Blue
			if x < w/2 && y < h/2 {
				c = Red
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func JPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// PNGHeader returns a PNG signature and IHDR chunk for an 8-bit grayscale
// image of w×h pixels, with no image data after it.
func PNGHeader(t testing.TB, w, h int) []byte {
	t.Helper()
	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(w))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(h))
	chunk = append(chunk, 8, 0, 0, 0, 0) // depth, gray, deflate, no filter, no interlace

	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, 13)
	out = append(out, chunk...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(chunk))
}

// WithOrientation splices an APP1 EXIF segment carrying only the orientation
// tag right after the JPEG SOI marker.
func WithOrientation(jpegData []byte, orientation uint16) []byte {
	tiff := []byte{
		'M', 'M', 0x00, 0x2a, // big endian, magic 42
		0x00, 0x00, 0x00, 0x08, // IFD0 offset
		0x00, 0x01, // one entry
		0x01, 0x12, // Orientation
		0x00, 0x03, // SHORT
		0x00, 0x00, 0x00, 0x01, // count
		byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	return WithAPP1(jpegData, append([]byte("Exif\x00\x00"), tiff...))
}

// WithAPP1 splices an arbitrary APP1 payload after the SOI marker.
func WithAPP1(jpegData, payload []byte) []byte {
	n := len(payload) + 2
	out := make([]byte, 0, len(jpegData)+n+2)
	out = append(out, jpegData[:2]...)
	out = append(out, 0xff, 0xe1, byte(n>>8), byte(n))
	out = append(out, payload...)
	return append(out, jpegData[2:]...)
}

// IsRed reports whether c is close to Red after lossy encoding.
func IsRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > 160 && g>>8 < 90 && b>>8 < 90
}

// IsBlue reports whether c is close to Blue after lossy encoding.
func IsBlue(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return b>>8 > 160 && r>>8 < 90 && g>>8 < 90
}
