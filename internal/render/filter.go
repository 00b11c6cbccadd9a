package render

import (
	"image"

	"golang.org/x/image/draw"
)

// Invert is the dark-mode filter: colour channels are inverted, alpha is
// kept.
func Invert(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	for i := 0; i+3 < len(dst.Pix); i += 4 {
		a := dst.Pix[i+3]
		// premultiplied, so each channel is at most alpha
		dst.Pix[i] = a - dst.Pix[i]
		dst.Pix[i+1] = a - dst.Pix[i+1]
		dst.Pix[i+2] = a - dst.Pix[i+2]
	}
	return dst
}
