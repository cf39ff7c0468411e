package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store that notifies onTerminal synchronously so
// tests can wait for a dispatched job to finish without polling.
type fakeStore struct {
	mu         sync.Mutex
	records    map[string]model.JobRecord
	onTerminal func(jobID string, state model.JobState)
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]model.JobRecord)}
}

func (s *fakeStore) Create(rec model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) UpdateState(jobID string, state model.JobState, err *model.Error) error {
	s.mu.Lock()
	rec := s.records[jobID]
	rec.State = state
	rec.Error = err
	s.records[jobID] = rec
	cb := s.onTerminal
	s.mu.Unlock()
	if cb != nil && (state == model.JobStateCompleted || state == model.JobStateFailed || state == model.JobStateCancelled) {
		cb(jobID, state)
	}
	return nil
}

func (s *fakeStore) UpdateProgress(jobID string, p model.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[jobID]
	rec.Progress = p
	s.records[jobID] = rec
	return nil
}

func (s *fakeStore) Get(jobID string) (model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[jobID], nil
}

func (s *fakeStore) List() ([]model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

// invalidConfigAdapter opens a reader with no streams so every job's
// JobConfig.Validate (no video/audio enabled) fails fast inside the
// resolver, exercising Controller's dispatch/terminal wiring without
// needing a full codec simulation.
type invalidConfigAdapter struct{}

type emptyReader struct{}

func (emptyReader) Streams(ctx context.Context) ([]model.StreamDescriptor, *model.Error) { return nil, nil }
func (emptyReader) BestStream(model.Kind) (int, bool)                                    { return 0, false }
func (emptyReader) ReadPacket(ctx context.Context) (model.Packet, bool, *model.Error)     { return model.Packet{}, false, nil }
func (emptyReader) Close() error                                                          { return nil }

func (invalidConfigAdapter) OpenReader(ctx context.Context, path string) (codec.Reader, *model.Error) {
	return emptyReader{}, nil
}
func (invalidConfigAdapter) OpenWriter(ctx context.Context, path string, container model.Container) (codec.Writer, *model.Error) {
	return nil, model.InternalError("test-adapter", "writer not used in this test", nil)
}
func (invalidConfigAdapter) OpenDecoder(ctx context.Context, stream model.StreamDescriptor) (codec.Decoder, *model.Error) {
	return nil, model.InternalError("test-adapter", "unused", nil)
}
func (invalidConfigAdapter) OpenEncoder(ctx context.Context, params model.EncoderParams, stream model.StreamDescriptor) (codec.Encoder, *model.Error) {
	return nil, model.InternalError("test-adapter", "unused", nil)
}
func (invalidConfigAdapter) OpenResampler(ctx context.Context, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (codec.Resampler, *model.Error) {
	return nil, model.InternalError("test-adapter", "unused", nil)
}
func (invalidConfigAdapter) OpenScaler(ctx context.Context) (codec.Scaler, *model.Error) {
	return nil, model.InternalError("test-adapter", "unused", nil)
}
func (invalidConfigAdapter) Capabilities() codec.Capabilities { return codec.Capabilities{} }

func TestController_EnqueueRunsJobToFailedTerminalState(t *testing.T) {
	store := newFakeStore()
	done := make(chan string, 1)
	store.onTerminal = func(jobID string, state model.JobState) { done <- jobID }

	c := New(invalidConfigAdapter{}, store, nil, 2)
	jobID, err := c.Enqueue(model.JobConfig{InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4})
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, jobID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached a terminal state")
	}

	rec, err := c.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, rec.State)
	require.NotNil(t, rec.Error)
	assert.Equal(t, model.ErrKindConfig, rec.Error.Kind)
}

func TestController_RetryReEnqueuesFailedJob(t *testing.T) {
	store := newFakeStore()
	done := make(chan string, 4)
	store.onTerminal = func(jobID string, state model.JobState) { done <- jobID }

	c := New(invalidConfigAdapter{}, store, nil, 1)
	jobID, err := c.Enqueue(model.JobConfig{InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4})
	require.NoError(t, err)
	<-done

	require.NoError(t, c.Retry(jobID))
	<-done

	rec, err := c.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateFailed, rec.State)
}

func TestController_CancelQueuedJobNeverRuns(t *testing.T) {
	store := newFakeStore()
	// Block dispatch by filling the one worker slot with a placeholder
	// "blocker" entry in running (it is never started and never finishes),
	// so the job enqueued below stays queued.
	c := New(invalidConfigAdapter{}, store, nil, 1)

	c.mu.Lock()
	c.running["blocker"] = func() {}
	c.mu.Unlock()

	jobID, err := c.Enqueue(model.JobConfig{InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4})
	require.NoError(t, err)

	require.NoError(t, c.Cancel(jobID))

	rec, err := c.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStateCancelled, rec.State)

	c.mu.Lock()
	_, stillRunning := c.running[jobID]
	c.mu.Unlock()
	assert.False(t, stillRunning)
}
