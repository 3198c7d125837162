package camera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tcolgate/entropycam/internal/frame"
)

// Archiver persists encoded captures.
type Archiver interface {
	Save(prefix string, jpg []byte) (string, error)
}

// Service serialises access to a Camera and encodes what it grabs. It is
// shared by the detection loop and one-off captures.
type Service struct {
	cam     Camera
	quality int
	archive Archiver
	log     *slog.Logger

	turn chan struct{}
}

// NewService wraps cam. archive may be nil.
func NewService(cam Camera, quality int, archive Archiver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cam:     cam,
		quality: quality,
		archive: archive,
		log:     log,
		turn:    make(chan struct{}, 1),
	}
}

// Capture grabs, decodes and encodes one frame. Errors wrap ErrCapture.
func (s *Service) Capture(ctx context.Context) (*frame.Frame, error) {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCapture, ctx.Err())
	}
	img, err := s.cam.Grab(ctx)
	<-s.turn
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	f := frame.New(img, time.Now())
	if f.JPEG, err = frame.EncodeJPEG(f.Image, s.quality); err != nil {
		return nil, fmt.Errorf("%w: encoding: %w", ErrCapture, err)
	}

	if s.archive != nil {
		if f.Path, err = s.archive.Save("capture", f.JPEG); err != nil {
			s.log.Warn("could not store capture", "error", err)
		}
	}
	return f, nil
}

func (s *Service) Close() error {
	return s.cam.Close()
}
