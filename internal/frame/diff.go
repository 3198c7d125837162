package frame

import (
	"errors"
	"fmt"
	"image"
)

// ErrSizeMismatch is returned when two frames of different dimensions are compared.
var ErrSizeMismatch = errors.New("frame dimensions differ")

// Difference returns a frame holding |a-b| for each pixel, computed on the
// red, green and blue channels independently. Alpha is opaque.
func Difference(a, b *image.NRGBA) (*image.NRGBA, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	w, h := ab.Dx(), ab.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ra := a.PixOffset(ab.Min.X, ab.Min.Y+y)
		rb := b.PixOffset(bb.Min.X, bb.Min.Y+y)
		ro := out.PixOffset(0, y)
		for x := 0; x < w*4; x += 4 {
			pa := a.Pix[ra+x : ra+x+4 : ra+x+4]
			pb := b.Pix[rb+x : rb+x+4 : rb+x+4]
			po := out.Pix[ro+x : ro+x+4 : ro+x+4]
			po[0] = absDiff(pa[0], pb[0])
			po[1] = absDiff(pa[1], pb[1])
			po[2] = absDiff(pa[2], pb[2])
			po[3] = 0xff
		}
	}
	return out, nil
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
