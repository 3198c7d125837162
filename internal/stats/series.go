// Package stats keeps the running history of entropy samples and summarises it.
package stats

import "sync"

// Series is an append-only sequence of samples that may be read while it is
// being appended to.
type Series struct {
	mu     sync.RWMutex
	values []float64
}

func NewSeries() *Series {
	return &Series{}
}

// Append adds v to the end of the series.
func (s *Series) Append(v float64) {
	s.mu.Lock()
	s.values = append(s.values, v)
	s.mu.Unlock()
}

func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a copy of the samples appended so far.
func (s *Series) Snapshot() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Summary computes the statistics of the current snapshot.
func (s *Series) Summary() (Summary, error) {
	return Compute(s.Snapshot())
}
