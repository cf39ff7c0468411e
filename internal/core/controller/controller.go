// Package controller implements the job-level ConcurrencyController: a
// bounded-concurrency FIFO queue over Prepared jobs, grounded on the
// viewra's transcodingmodule/core/session.SessionManager — a mutex-
// protected in-memory roster backed by a persistent store, with an
// explicit state transition matrix (model.JobState.CanTransitionTo here,
// SessionManager.stateTransitions there).
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/job"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// Store is the persistence surface the controller needs; internal/core/store
// implements it.
type Store interface {
	Create(rec model.JobRecord) error
	UpdateState(jobID string, state model.JobState, err *model.Error) error
	UpdateProgress(jobID string, p model.Progress) error
	Get(jobID string) (model.JobRecord, error)
	List() ([]model.JobRecord, error)
}

// Controller admits jobs into the queue and runs up to MaxConcurrent of
// them at a time, in FIFO enqueue order (spec.md §4.7).
type Controller struct {
	adapter       codec.CodecAdapter
	store         Store
	log           codec.Logger
	maxConcurrent int
	broadcast     job.ProgressSink // optional, e.g. internal/core/progress.Hub

	mu      sync.Mutex
	queue   []string
	configs map[string]model.JobConfig
	running map[string]context.CancelFunc
}

func New(adapter codec.CodecAdapter, store Store, log codec.Logger, maxConcurrent int) *Controller {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Controller{
		adapter: adapter, store: store, log: log, maxConcurrent: maxConcurrent,
		configs: make(map[string]model.JobConfig),
		running: make(map[string]context.CancelFunc),
	}
}

// SetBroadcast attaches a ProgressSink (internal/core/progress.Hub) that
// receives every event alongside the store write.
func (c *Controller) SetBroadcast(sink job.ProgressSink) {
	c.broadcast = sink
}

// Enqueue admits a new job in state Prepared and, if a worker slot is free,
// starts it immediately; otherwise it waits in FIFO order behind jobs
// already running.
func (c *Controller) Enqueue(cfg model.JobConfig) (string, error) {
	jobID := uuid.New().String()
	rec := model.JobRecord{ID: jobID, State: model.JobStatePrepared, Config: cfg}
	if err := c.store.Create(rec); err != nil {
		return "", fmt.Errorf("persist job %s: %w", jobID, err)
	}

	c.mu.Lock()
	c.configs[jobID] = cfg
	c.queue = append(c.queue, jobID)
	c.mu.Unlock()

	c.dispatch()
	return jobID, nil
}

// Cancel stops a running job's context, or — if the job is still only
// queued — removes it from the queue without ever starting it.
func (c *Controller) Cancel(jobID string) error {
	c.mu.Lock()
	if cancel, ok := c.running[jobID]; ok {
		c.mu.Unlock()
		cancel()
		return nil
	}
	for i, id := range c.queue {
		if id == jobID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			delete(c.configs, jobID)
			c.mu.Unlock()
			return c.store.UpdateState(jobID, model.JobStateCancelled, model.CancelledError("controller"))
		}
	}
	c.mu.Unlock()
	return fmt.Errorf("job %s is not queued or running", jobID)
}

// Retry re-admits a Failed job, the one legal Failed->Prepared edge in the
// job state machine (model.JobState.CanTransitionTo).
func (c *Controller) Retry(jobID string) error {
	rec, err := c.store.Get(jobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !rec.State.CanTransitionTo(model.JobStatePrepared) {
		return fmt.Errorf("job %s in state %s cannot be retried", jobID, rec.State)
	}
	if err := c.store.UpdateState(jobID, model.JobStatePrepared, nil); err != nil {
		return fmt.Errorf("reset job %s to prepared: %w", jobID, err)
	}

	c.mu.Lock()
	c.configs[jobID] = rec.Config
	c.queue = append(c.queue, jobID)
	c.mu.Unlock()

	c.dispatch()
	return nil
}

// dispatch starts as many queued jobs as there are free worker slots.
func (c *Controller) dispatch() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || len(c.running) >= c.maxConcurrent {
			c.mu.Unlock()
			return
		}
		jobID := c.queue[0]
		c.queue = c.queue[1:]
		cfg := c.configs[jobID]
		ctx, cancel := context.WithCancel(context.Background())
		c.running[jobID] = cancel
		c.mu.Unlock()

		go c.runOne(ctx, jobID, cfg)
	}
}

func (c *Controller) runOne(ctx context.Context, jobID string, cfg model.JobConfig) {
	if err := c.store.UpdateState(jobID, model.JobStateRunning, nil); err != nil && c.log != nil {
		c.log.Error("failed to persist running state", "job_id", jobID, "error", err)
	}

	runner := job.NewRunner(c.adapter, c.log, (*controllerSink)(c))
	runner.Run(ctx, jobID, cfg)

	c.mu.Lock()
	delete(c.running, jobID)
	delete(c.configs, jobID)
	c.mu.Unlock()

	c.dispatch()
}

// controllerSink adapts Controller itself to job.ProgressSink so store
// writes happen on the same roster the FIFO queue guards.
type controllerSink Controller

func (s *controllerSink) OnProgress(jobID string, p model.Progress) {
	if err := s.store.UpdateProgress(jobID, p); err != nil && s.log != nil {
		s.log.Warn("failed to persist progress", "job_id", jobID, "error", err)
	}
	if s.broadcast != nil {
		s.broadcast.OnProgress(jobID, p)
	}
}

func (s *controllerSink) OnTerminal(jobID string, state model.JobState, jobErr *model.Error) {
	if err := s.store.UpdateState(jobID, state, jobErr); err != nil && s.log != nil {
		s.log.Error("failed to persist terminal state", "job_id", jobID, "error", err)
	}
	if s.broadcast != nil {
		s.broadcast.OnTerminal(jobID, state, jobErr)
	}
}

// Status reports one job's persisted record, for the HTTP API.
func (c *Controller) Status(jobID string) (model.JobRecord, error) {
	return c.store.Get(jobID)
}

// List reports every job's persisted record, for the HTTP API.
func (c *Controller) List() ([]model.JobRecord, error) {
	return c.store.List()
}
