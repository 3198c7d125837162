// Package camera grabs still images from the configured driver and turns
// them into encoded frames.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// ErrCapture wraps every failure to produce a frame.
var ErrCapture = errors.New("capture failed")

// Drivers
const (
	DriverV4L   = "v4l"
	DriverStill = "still"
	DriverDir   = "dir"
)

// Camera is a capture driver.
type Camera interface {
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}

// Options select and configure a driver.
type Options struct {
	Driver string

	// v4l
	Device string
	Format string
	Size   string

	// still
	Command string
	Args    []string

	// dir
	Dir string

	Logger *slog.Logger
}

// Open returns the camera named by opts.Driver.
func Open(opts Options) (Camera, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch opts.Driver {
	case DriverV4L, "":
		return OpenV4L(opts.Device, opts.Format, opts.Size, opts.Logger)
	case DriverStill:
		return NewStill(opts.Command, opts.Args), nil
	case DriverDir:
		return OpenDir(opts.Dir)
	default:
		return nil, fmt.Errorf("unknown camera driver %q", opts.Driver)
	}
}
