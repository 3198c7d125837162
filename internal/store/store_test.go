package store

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcolgate/entropycam/internal/frame"
)

func TestStoreRetention(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	var paths []string
	for i := 0; i < 4; i++ {
		p, err := s.Save("capture", []byte{byte(i)})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filepath.Base(p), "capture-"))
		paths = append(paths, p)
	}
	_, err = s.Save("diff", []byte{9})
	require.NoError(t, err)

	for _, p := range paths[:2] {
		assert.NoFileExists(t, p)
	}
	for _, p := range paths[2:] {
		assert.FileExists(t, p)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestStorePrunesEarlierRuns(t *testing.T) {
	dir := t.TempDir()
	old := []string{
		"capture-20200101T000000.000-a.jpg",
		"capture-20200101T000001.000-b.jpg",
		"capture-20200101T000002.000-c.jpg",
	}
	for _, name := range old {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{1}, 0o644))
	}
	other := filepath.Join(dir, "diff-20200101T000000.000-d.jpg")
	require.NoError(t, os.WriteFile(other, []byte{1}, 0o644))

	s, err := New(dir, 2, nil)
	require.NoError(t, err)
	p, err := s.Save("capture", []byte{2})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, old[0]))
	assert.NoFileExists(t, filepath.Join(dir, old[1]))
	assert.FileExists(t, filepath.Join(dir, old[2]))
	assert.FileExists(t, p)
	assert.FileExists(t, other, "other prefixes are pruned separately")
}

func TestStoreRequiresKeep(t *testing.T) {
	_, err := New(t.TempDir(), 0, nil)
	assert.Error(t, err)
}

func testFrame(t *testing.T, w, h int) *frame.Frame {
	t.Helper()
	f := frame.New(imaging.New(w, h, color.NRGBA{10, 20, 30, 255}), time.Now())
	var err error
	f.JPEG, err = frame.EncodeJPEG(f.Image, 70)
	require.NoError(t, err)
	return f
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, 4, nil)
	require.NoError(t, err)

	assert.Error(t, r.AddFrame(testFrame(t, 8, 8)))

	require.NoError(t, r.StartRun("abc"))
	require.NoError(t, r.AddFrame(testFrame(t, 8, 8)))
	assert.Error(t, r.StartRun("def"), "an open recording must be ended first")
	require.NoError(t, r.AddFrame(testFrame(t, 8, 8)))
	assert.Error(t, r.AddFrame(testFrame(t, 4, 4)))
	require.NoError(t, r.EndRun())

	st, err := os.Stat(r.Path("abc"))
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))

	// runs without frames leave no file behind
	require.NoError(t, r.StartRun("empty"))
	require.NoError(t, r.EndRun())
	assert.NoFileExists(t, r.Path("empty"))
}
