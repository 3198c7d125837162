package main

import (
	"sync"

	"github.com/tcolgate/entropycam/internal/detector"
	"github.com/tcolgate/entropycam/internal/frame"
)

// broadcaster fans detector events out to every transport and remembers
// the most recent results for the debug handlers.
type broadcaster struct {
	mu     sync.RWMutex
	sinks  []detector.Sink
	pic    *frame.Frame
	result *detector.Result
}

func (b *broadcaster) Add(s detector.Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *broadcaster) Emit(event string, payload interface{}) {
	b.mu.Lock()
	if res, ok := payload.(*detector.Result); ok {
		if res.Frame != nil {
			b.pic = res.Frame
		}
		if res.Entropy != nil {
			b.result = res
		}
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range sinks {
		s.Emit(event, payload)
	}
}

// Latest returns the last captured frame and the last complete result.
// Either may be nil.
func (b *broadcaster) Latest() (*frame.Frame, *detector.Result) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pic, b.result
}
