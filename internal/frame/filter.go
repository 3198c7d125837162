package frame

import (
	"image"

	"github.com/disintegration/gift"
)

// Preprocessor runs captures through an optional filter chain before they
// are differenced. The zero chain leaves images untouched.
type Preprocessor struct {
	g *gift.GIFT
}

// NewPreprocessor builds a chain that scales frames down to width pixels
// (0 keeps the native size) and applies a gaussian blur of the given sigma
// (0 disables it).
func NewPreprocessor(width int, blur float32) *Preprocessor {
	g := gift.New()
	if width > 0 {
		g.Add(gift.Resize(width, 0, gift.LinearResampling))
	}
	if blur > 0 {
		g.Add(gift.GaussianBlur(blur))
	}
	return &Preprocessor{g: g}
}

// Apply returns the filtered image, or img itself when there is nothing to do.
func (p *Preprocessor) Apply(img *image.NRGBA) *image.NRGBA {
	if p == nil || p.g == nil || len(p.g.Filters) == 0 {
		return img
	}
	dst := image.NewNRGBA(p.g.Bounds(img.Bounds()))
	p.g.Draw(dst, img)
	return dst
}
