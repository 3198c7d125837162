// Package entropy measures how disordered a difference image is, using the
// colour histograms of its red, green and blue bands.
package entropy

import "image"

// Levels is the number of intensity buckets per band.
const Levels = 256

// Histograms are the per-band pixel counts of an image.
type Histograms struct {
	R [Levels]int `json:"r"`
	G [Levels]int `json:"g"`
	B [Levels]int `json:"b"`
}

// Of counts the red, green and blue values of every pixel in img.
func Of(img *image.NRGBA) *Histograms {
	h := &Histograms{}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			h.R[row[i]]++
			h.G[row[i+1]]++
			h.B[row[i+2]]++
		}
	}
	return h
}

// Combined returns the 768 bucket concatenation r|g|b.
func (h *Histograms) Combined() []int {
	out := make([]int, 0, 3*Levels)
	out = append(out, h.R[:]...)
	out = append(out, h.G[:]...)
	return append(out, h.B[:]...)
}
