package pyramid

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Filter post-processes a decoded tile before it reaches the memory tier.
type Filter func(image.Image) image.Image

// NewDecoder returns the decode step for src. Empty and placeholder data
// are reported as ErrNoImagery so they are neither cached nor retried.
func NewDecoder(src Source, filter Filter) DecodeFunc {
	return func(data []byte) (image.Image, error) {
		if len(data) == 0 || src.IsPlaceholder(data) {
			return nil, ErrNoImagery
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode tile (%d bytes): %w", len(data), err)
		}
		if filter != nil {
			img = filter(img)
		}
		return img, nil
	}
}
