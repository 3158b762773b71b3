package imageproc

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// readOrientation returns the EXIF orientation tag or 0. It never fails:
// missing, truncated or malformed metadata all read as "no orientation".
func readOrientation(data []byte) (orientation int) {
	defer func() {
		if recover() != nil {
			orientation = 0
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x == nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 0
	}
	return v
}
