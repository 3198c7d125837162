package entropy

import (
	"errors"
	"math"
)

// ErrEmptyHistogram is returned for a histogram with no counted pixels.
var ErrEmptyHistogram = errors.New("histogram has no samples")

// Reading is the entropy of one difference image.
type Reading struct {
	Total float64 `json:"total_entropy"`
	R     float64 `json:"r_entropy"`
	G     float64 `json:"g_entropy"`
	B     float64 `json:"b_entropy"`
}

// Entropy computes -Σ p·log2(p)·p over the non-empty buckets of hist.
//
// This is not Shannon entropy: each term carries an extra factor of p, and
// the running statistics are calibrated against exactly this quantity.
// Probabilities are taken relative to the count of the first band (the first
// Levels buckets), which is the pixel count for both a single band and the
// combined r|g|b histogram.
func Entropy(hist []int) (float64, error) {
	band := hist
	if len(band) > Levels {
		band = band[:Levels]
	}
	total := 0
	for _, c := range band {
		total += c
	}
	if total == 0 {
		return 0, ErrEmptyHistogram
	}

	var e float64
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		e -= p * math.Log2(p) * p
	}
	return e, nil
}

// Measure computes the combined and per band entropy of h.
func Measure(h *Histograms) (Reading, error) {
	var (
		r   Reading
		err error
	)
	if r.Total, err = Entropy(h.Combined()); err != nil {
		return Reading{}, err
	}
	if r.R, err = Entropy(h.R[:]); err != nil {
		return Reading{}, err
	}
	if r.G, err = Entropy(h.G[:]); err != nil {
		return Reading{}, err
	}
	if r.B, err = Entropy(h.B[:]); err != nil {
		return Reading{}, err
	}
	return r, nil
}
