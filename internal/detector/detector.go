// Package detector runs the capture, difference and entropy loop and the
// on/off controller that drives it.
package detector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tcolgate/entropycam/internal/frame"
	"github.com/tcolgate/entropycam/internal/metrics"
	"github.com/tcolgate/entropycam/internal/stats"
)

const (
	DefaultSettle       = 500 * time.Millisecond
	DefaultStatsWorkers = 2
	DefaultQuality      = 85
)

// State is the detection state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return CommandOn
	}
	return CommandOff
}

// Options tune a Detector. Zero values take the package defaults.
type Options struct {
	Settle         time.Duration
	CaptureTimeout time.Duration
	StatsWorkers   int64
	Quality        int

	// ScopePerRun starts every run with an empty entropy series. Otherwise
	// one series spans the life of the Detector.
	ScopePerRun bool

	Preprocess *frame.Preprocessor
	Archive    Archiver
	Recorder   Recorder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Detector owns the entropy series and at most one running detection loop.
type Detector struct {
	cam  Capturer
	sink Sink
	opts Options
	log  *slog.Logger

	pool   *semaphore.Weighted
	tasks  sync.WaitGroup
	series atomic.Pointer[stats.Series]

	mu  sync.Mutex
	cur *run
}

// run is one Idle→Running→Idle lifetime of the loop.
type run struct {
	id   string
	on   atomic.Bool
	stop chan struct{}
	done chan struct{}
	prev <-chan struct{}
	log  *slog.Logger
}

func New(cam Capturer, sink Sink, opts Options) *Detector {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.StatsWorkers <= 0 {
		opts.StatsWorkers = DefaultStatsWorkers
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Detector{
		cam:  cam,
		sink: sink,
		opts: opts,
		log:  opts.Logger,
		pool: semaphore.NewWeighted(opts.StatsWorkers),
	}
	d.series.Store(stats.NewSeries())
	return d
}

// Toggle handles an on/off command and returns the resulting state, "on" or
// "off". A second "on" while running is ignored. Stopping is cooperative: the
// loop exits at its next cycle boundary, possibly after Toggle has returned.
func (d *Detector) Toggle(cmd string) string {
	if cmd == CommandOn {
		d.Start()
	} else {
		d.Stop()
	}
	return d.State().String()
}

// Start begins a new run unless one is active. It reports whether a run was started.
func (d *Detector) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cur != nil && d.cur.on.Load() {
		return false
	}

	r := &run{
		id:   uuid.NewString(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.log = d.log.With("run", r.id)
	r.on.Store(true)
	if d.cur != nil {
		// a stopped loop may still be finishing its last cycle
		r.prev = d.cur.done
	}
	d.cur = r
	d.opts.Metrics.SetRunning(true)

	go d.loop(r)
	return true
}

// Stop asks the active run to finish. It reports whether a run was active.
func (d *Detector) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cur == nil || !d.cur.on.Load() {
		return false
	}
	d.cur.on.Store(false)
	close(d.cur.stop)
	d.opts.Metrics.SetRunning(false)
	return true
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur != nil && d.cur.on.Load() {
		return Running
	}
	return Idle
}

// Series returns the entropy series currently being appended to.
func (d *Detector) Series() *stats.Series {
	return d.series.Load()
}

// Wait blocks until the most recent loop and all statistics tasks have exited.
func (d *Detector) Wait(ctx context.Context) error {
	d.mu.Lock()
	r := d.cur
	d.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tasks := make(chan struct{})
	go func() {
		d.tasks.Wait()
		close(tasks)
	}()
	select {
	case <-tasks:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops detection and waits for the loop to exit.
func (d *Detector) Close(ctx context.Context) error {
	d.Stop()
	return d.Wait(ctx)
}
