// Package store keeps captured images on disk.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store writes JPEGs into a directory and keeps only the newest Keep files
// for each name prefix.
type Store struct {
	dir  string
	keep int
	log  *slog.Logger

	mu    sync.Mutex
	files map[string][]string
}

// DefaultDir is used when no directory is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "entropycam")
}

func New(dir string, keep int, log *slog.Logger) (*Store, error) {
	if keep <= 0 {
		return nil, fmt.Errorf("store must keep at least one file, got %d", keep)
	}
	if dir == "" {
		dir = DefaultDir()
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dir:   dir,
		keep:  keep,
		log:   log,
		files: map[string][]string{},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes jpg as <prefix>-<time>-<id>.jpg and removes the oldest files
// with the same prefix beyond the retention limit. Files left in the
// directory by an earlier process count towards the limit.
func (s *Store) Save(prefix string, jpg []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.files[prefix]
	if !ok {
		files = s.existing(prefix)
	}

	name := fmt.Sprintf("%s-%s-%s.jpg", prefix, time.Now().Format("20060102T150405.000"), uuid.NewString())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, jpg, 0o644); err != nil {
		s.files[prefix] = files
		return "", err
	}

	files = append(files, path)
	for len(files) > s.keep {
		if err := os.Remove(files[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("could not remove old capture", "path", files[0], "error", err)
		}
		files = files[1:]
	}
	s.files[prefix] = files
	return path, nil
}

// existing lists files already stored under prefix, oldest first. Names
// embed their timestamp, so lexical order is age order.
func (s *Store) existing(prefix string) []string {
	files, err := filepath.Glob(filepath.Join(s.dir, prefix+"-*.jpg"))
	if err != nil {
		s.log.Warn("could not list stored captures", "prefix", prefix, "error", err)
		return nil
	}
	sort.Strings(files)
	return files
}
