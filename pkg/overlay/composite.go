package overlay

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"

	"github.com/nfnt/resize"
)

// Composite scales media to the overlay's size, stretching it the same way the
// display does, and draws the overlay over it.
func Composite(media image.Image, layer *image.RGBA) *image.RGBA {
	b := layer.Bounds()
	out := image.NewRGBA(b)

	if media != nil && b.Dx() > 0 && b.Dy() > 0 {
		scaled := resize.Resize(uint(b.Dx()), uint(b.Dy()), media, resize.Bilinear)
		draw.Draw(out, b, scaled, scaled.Bounds().Min, draw.Src)
	}
	draw.Draw(out, b, layer, b.Min, draw.Over)

	return out
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
