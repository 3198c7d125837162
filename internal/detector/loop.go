package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/tcolgate/entropycam/internal/entropy"
	"github.com/tcolgate/entropycam/internal/frame"
	"github.com/tcolgate/entropycam/internal/stats"
)

func (d *Detector) loop(r *run) {
	defer close(r.done)
	if r.prev != nil {
		<-r.prev
	}

	series := d.series.Load()
	if d.opts.ScopePerRun {
		series = stats.NewSeries()
		d.series.Store(series)
	}

	if rec := d.opts.Recorder; rec != nil {
		if err := rec.StartRun(r.id); err != nil {
			r.log.Warn("could not start recording", "error", err)
		} else {
			defer func() {
				if err := rec.EndRun(); err != nil {
					r.log.Warn("could not finish recording", "error", err)
				}
			}()
		}
	}

	r.log.Info("detector started", "settle", d.opts.Settle)
	defer r.log.Info("detector stopped", "samples", series.Len())

	var prev *frame.Frame
	for r.on.Load() {
		prev = d.cycle(r, series, prev)

		r.settle(d.opts.Settle)
	}
}

// settle waits for d and reports false if the run was stopped first.
func (r *run) settle(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.stop:
		return false
	}
}

// cycle compares prev against a new capture and returns the frame the next
// cycle should compare against. With no prev, the first frame is captured
// and announced before waiting one settle interval. A stop during that wait
// ends the cycle without a second capture.
func (d *Detector) cycle(r *run, series *stats.Series, prev *frame.Frame) (next *frame.Frame) {
	start := time.Now()
	outcome := "ok"
	next = prev
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("detection cycle panicked", "panic", fmt.Sprint(p))
			outcome = "panic"
		}
		d.opts.Metrics.Cycle(outcome, time.Since(start).Seconds())
	}()

	if prev == nil {
		first, err := d.capture(r)
		if err != nil {
			r.log.Warn("capture failed", "error", err)
			outcome = "capture_error"
			return nil
		}
		d.sink.Emit(EventRunning, &Result{Pic: first.DataURI(), Frame: first})
		prev, next = first, first
		if !r.settle(d.opts.Settle) {
			return next
		}
	}

	cur, err := d.capture(r)
	if err != nil {
		r.log.Warn("capture failed", "error", err)
		outcome = "capture_error"
		return prev
	}
	next = cur

	res, err := d.analyze(r, prev, cur)
	if err != nil {
		r.log.Warn("could not analyse frames", "error", err)
		outcome = "analysis_error"
		return cur
	}

	series.Append(res.Entropy.Total)
	d.opts.Metrics.ObserveEntropy(res.Entropy.Total, res.Entropy.R, res.Entropy.G, res.Entropy.B, series.Len())
	d.sink.Emit(EventRunning, res)
	d.emitStats(r, series)

	return cur
}

func (d *Detector) capture(r *run) (*frame.Frame, error) {
	ctx := context.Background()
	if d.opts.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.CaptureTimeout)
		defer cancel()
	}

	f, err := d.cam.Capture(ctx)
	if err != nil {
		d.opts.Metrics.CaptureFailed()
		return nil, err
	}

	if rec := d.opts.Recorder; rec != nil {
		if err := rec.AddFrame(f); err != nil {
			r.log.Warn("could not record frame", "error", err)
		}
	}
	return f, nil
}

func (d *Detector) analyze(r *run, a, b *frame.Frame) (*Result, error) {
	diff, err := frame.Difference(d.opts.Preprocess.Apply(a.Image), d.opts.Preprocess.Apply(b.Image))
	if err != nil {
		return nil, err
	}

	hist := entropy.Of(diff)
	reading, err := entropy.Measure(hist)
	if err != nil {
		return nil, err
	}

	jpg, err := frame.EncodeJPEG(diff, d.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encoding difference: %w", err)
	}
	df := &frame.Frame{Image: diff, JPEG: jpg, Taken: b.Taken}
	if d.opts.Archive != nil {
		if df.Path, err = d.opts.Archive.Save("diff", jpg); err != nil {
			r.log.Warn("could not store difference image", "error", err)
		}
	}

	return &Result{
		Pic:       b.DataURI(),
		DiffImg:   df.DataURI(),
		Entropy:   &reading,
		Histogram: hist,
		Frame:     b,
		Diff:      df,
	}, nil
}

// emitStats summarises the series in the background. When every statistics
// worker is busy the summary is skipped for this cycle.
func (d *Detector) emitStats(r *run, series *stats.Series) {
	if !d.pool.TryAcquire(1) {
		d.opts.Metrics.StatsDropped()
		r.log.Debug("statistics workers busy, skipping")
		return
	}

	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		defer d.pool.Release(1)

		sum, err := series.Summary()
		if err != nil {
			r.log.Debug("statistics not emitted", "error", err)
			return
		}
		d.opts.Metrics.ObserveStats(sum.Mean, sum.SampleVariance, sum.SampleStdDev)
		d.sink.Emit(EventStats, sum)
	}()
}
