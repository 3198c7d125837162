package main // import "github.com/tcolgate/entropycam"

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/tcolgate/entropycam/internal/camera"
	"github.com/tcolgate/entropycam/internal/config"
	"github.com/tcolgate/entropycam/internal/detector"
	"github.com/tcolgate/entropycam/internal/frame"
	"github.com/tcolgate/entropycam/internal/metrics"
	"github.com/tcolgate/entropycam/internal/store"
)

func main() {
	cfgFile := flag.String("c", "", "config file")
	dev := flag.String("d", "", "video device to use")
	fmtstr := flag.String("f", "", "video format to use, default first supported")
	szstr := flag.String("s", "", "frame size to use, default largest one")
	addr := flag.String("l", "", "addr to listen")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.Camera.Device = *dev
		case "f":
			cfg.Camera.Format = *fmtstr
		case "s":
			cfg.Camera.Size = *szstr
		case "l":
			cfg.Server.Addr = *addr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := cfg.Log.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	cam, err := camera.Open(camera.Options{
		Driver:  cfg.Camera.Driver,
		Device:  cfg.Camera.Device,
		Format:  cfg.Camera.Format,
		Size:    cfg.Camera.Size,
		Command: cfg.Camera.Command,
		Args:    cfg.Camera.Args,
		Dir:     cfg.Camera.Dir,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	var (
		captureArchive camera.Archiver
		diffArchive    detector.Archiver
	)
	if cfg.Storage.Keep > 0 {
		st, err := store.New(cfg.Storage.Dir, cfg.Storage.Keep, logger)
		if err != nil {
			return err
		}
		logger.Info("storing captures", "dir", st.Dir(), "keep", cfg.Storage.Keep)
		captureArchive, diffArchive = st, st
	}

	var recorder detector.Recorder
	if cfg.Record.Enabled {
		rec, err := store.NewRecorder(cfg.Record.Dir, cfg.Record.FPS, logger)
		if err != nil {
			return err
		}
		recorder = rec
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := camera.NewService(cam, cfg.Camera.Quality, captureArchive, logger)
	defer svc.Close()

	events := &broadcaster{}
	det := detector.New(svc, events, detector.Options{
		Settle:         cfg.Detector.Settle,
		CaptureTimeout: cfg.Detector.CaptureTimeout,
		StatsWorkers:   int64(cfg.Detector.StatsWorkers),
		Quality:        cfg.Camera.Quality,
		ScopePerRun:    cfg.Detector.SeriesScope == config.ScopeRun,
		Preprocess:     frame.NewPreprocessor(cfg.Detector.AnalysisWidth, cfg.Detector.Blur),
		Archive:        diffArchive,
		Recorder:       recorder,
		Metrics:        metrics.New(reg),
		Logger:         logger,
	})

	checkOrigin := allowOrigin(cfg.Server.AllowedOrigins)
	sio := newSocketServer(det, checkOrigin, logger)
	ws := newWSHub(det, checkOrigin, logger)
	sink := newSocketSink(sio, logger)
	defer sink.Close()
	events.Add(sink)
	events.Add(ws)

	srv := &server{
		det:     det,
		cam:     svc,
		events:  events,
		origins: cfg.Server.AllowedOrigins,
		timeout: cfg.Detector.CaptureTimeout,
		log:     logger,
	}
	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.router(sio, ws, reg),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sio.Serve(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := det.Close(sctx); err != nil {
			logger.Warn("detector did not stop in time", "error", err)
		}
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		return sio.Close()
	})

	return g.Wait()
}
