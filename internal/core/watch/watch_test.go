package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	enqueued []model.JobConfig
}

func (f *fakeController) Enqueue(cfg model.JobConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, cfg)
	return "job-1", nil
}

func (f *fakeController) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

func TestWatcher_EnqueuesStableFileAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctrl := &fakeController{}
	w, err := New(dir, 30*time.Millisecond, Template{Container: model.ContainerMP4}, ctrl, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return ctrl.count() == 1
	}, 400*time.Millisecond, 10*time.Millisecond)

	assert.Equal(t, path, ctrl.enqueued[0].InputPath)
	assert.Equal(t, filepath.Join(dir, "input_transcoded.mp4"), ctrl.enqueued[0].OutputPath)
}

func TestWatcher_NeverEnqueuesNonMediaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644))

	ctrl := &fakeController{}
	w, err := New(dir, 20*time.Millisecond, Template{Container: model.ContainerMP4}, ctrl, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.Equal(t, 0, ctrl.count())
}

func TestWatcher_DoesNotReenqueueSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.mkv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctrl := &fakeController{}
	w, err := New(dir, 15*time.Millisecond, Template{Container: model.ContainerMKV}, ctrl, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.Equal(t, 1, ctrl.count())
}
