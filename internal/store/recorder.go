package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/icza/mjpeg"

	"github.com/tcolgate/entropycam/internal/frame"
)

// Recorder writes the frames captured during a detection run into a
// Motion-JPEG AVI, one file per run.
type Recorder struct {
	dir string
	fps int32
	log *slog.Logger

	mu     sync.Mutex
	id     string
	aw     mjpeg.AviWriter
	w, h   int
	frames int
}

func NewRecorder(dir string, fps int, log *slog.Logger) (*Recorder, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if fps <= 0 {
		fps = 2
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir, fps: int32(fps), log: log}, nil
}

// Path of the recording for run id.
func (r *Recorder) Path(id string) string {
	return filepath.Join(r.dir, "run-"+id+".avi")
}

func (r *Recorder) StartRun(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aw != nil {
		return fmt.Errorf("recording of run %s still open", r.id)
	}
	r.id = id
	r.frames = 0
	return nil
}

// AddFrame appends f. The first frame of a run fixes the video size; frames
// of any other size are rejected.
func (r *Recorder) AddFrame(f *frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == "" {
		return fmt.Errorf("no run started")
	}

	if r.aw == nil {
		aw, err := mjpeg.New(r.Path(r.id), int32(f.Width()), int32(f.Height()), r.fps)
		if err != nil {
			return err
		}
		r.aw, r.w, r.h = aw, f.Width(), f.Height()
	}
	if f.Width() != r.w || f.Height() != r.h {
		return fmt.Errorf("frame is %dx%d, recording is %dx%d", f.Width(), f.Height(), r.w, r.h)
	}
	if err := r.aw.AddFrame(f.JPEG); err != nil {
		return err
	}
	r.frames++
	return nil
}

func (r *Recorder) EndRun() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id
	r.id = ""
	if r.aw == nil {
		return nil
	}
	err := r.aw.Close()
	r.aw = nil
	r.log.Info("recording finished", "run", id, "path", r.Path(id), "frames", r.frames)
	return err
}
