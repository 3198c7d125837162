package detector

import (
	"context"

	"github.com/tcolgate/entropycam/internal/entropy"
	"github.com/tcolgate/entropycam/internal/frame"
)

// Event names pushed to a Sink.
const (
	EventRunning = "detector running"
	EventStats   = "standard-dev"
	EventAck     = "motion response"
)

// Commands understood by Toggle. Anything other than CommandOn means off.
const (
	CommandOn  = "on"
	CommandOff = "off"
)

// Result is the payload of EventRunning. The first event of a run only
// carries Pic; Entropy and Histogram are nil until two frames were compared.
type Result struct {
	Pic       string              `json:"pic"`
	DiffImg   string              `json:"diff_img"`
	Entropy   *entropy.Reading    `json:"entropy"`
	Histogram *entropy.Histograms `json:"histogram"`

	Frame *frame.Frame `json:"-"`
	Diff  *frame.Frame `json:"-"`
}

// Ack is the payload of EventAck.
type Ack struct {
	Data string `json:"data"`
}

// Sink receives events. Emit is called from the loop and from statistics
// tasks concurrently and must not block for long.
type Sink interface {
	Emit(event string, payload interface{})
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(event string, payload interface{})

func (f SinkFunc) Emit(event string, payload interface{}) { f(event, payload) }

// Capturer produces a fresh frame. Implementations must give up when ctx is done.
type Capturer interface {
	Capture(ctx context.Context) (*frame.Frame, error)
}

// CapturerFunc adapts a function to a Capturer.
type CapturerFunc func(ctx context.Context) (*frame.Frame, error)

func (f CapturerFunc) Capture(ctx context.Context) (*frame.Frame, error) { return f(ctx) }

// Archiver persists encoded images and returns where they were written.
type Archiver interface {
	Save(prefix string, jpg []byte) (string, error)
}

// Recorder receives every frame captured during a run.
type Recorder interface {
	StartRun(id string) error
	AddFrame(f *frame.Frame) error
	EndRun() error
}
