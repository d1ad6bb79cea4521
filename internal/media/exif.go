package media

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ImageInfo holds EXIF fields logged before an image is re-encoded.
type ImageInfo struct {
	// Orientation is the EXIF orientation tag (1-8), or 0 when absent.
	Orientation int
	Taken       time.Time
}

// Rotated reports whether viewers must rotate or flip the stored pixels.
func (i ImageInfo) Rotated() bool {
	return i.Orientation > 1
}

// ReadImageInfo decodes the EXIF block of a JPEG. Missing individual tags are
// not errors; a file without EXIF is.
func ReadImageInfo(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode exif: %w", err)
	}

	var info ImageInfo
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			info.Orientation = v
		}
	}
	if taken, err := x.DateTime(); err == nil {
		info.Taken = taken
	}
	return info, nil
}
