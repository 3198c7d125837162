package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when fewer than two samples are available.
var ErrInsufficientData = errors.New("at least two samples are required")

// Summary describes the distribution of a series.
type Summary struct {
	N              int     `json:"-"`
	Mean           float64 `json:"mean"`
	SampleVariance float64 `json:"sample_variance"`
	SampleStdDev   float64 `json:"sample_std_dev"`
}

// Compute returns the mean, sample variance (n-1 denominator) and sample
// standard deviation of values.
func Compute(values []float64) (Summary, error) {
	if len(values) < 2 {
		return Summary{}, fmt.Errorf("%w: have %d", ErrInsufficientData, len(values))
	}
	mean, variance := stat.MeanVariance(values, nil)
	return Summary{
		N:              len(values),
		Mean:           mean,
		SampleVariance: variance,
		SampleStdDev:   math.Sqrt(variance),
	}, nil
}
