package model

import "time"

// JobState is the job-level state machine. Transitions are enforced by
// JobRunner/ConcurrencyController, not by this type: Prepared->Running,
// Prepared->Cancelled (a queued job cancelled before it starts),
// Running->Completed, Running->Failed, Running->Cancelled, and the one
// explicit retry transition Failed->Prepared.
type JobState string

const (
	JobStatePrepared  JobState = "prepared"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// CanTransitionTo reports whether moving from s to next is a legal edge in
// the job state machine.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStatePrepared:
		return next == JobStateRunning || next == JobStateCancelled
	case JobStateRunning:
		return next == JobStateCompleted || next == JobStateFailed || next == JobStateCancelled
	case JobStateFailed:
		return next == JobStatePrepared // retry
	default:
		return false
	}
}

// Progress is the point-in-time progress snapshot JobRunner publishes to
// the progress hub and persists on each burst of the interleave scheduler.
type Progress struct {
	VideoFramesEncoded int64
	AudioSamplesEncoded int64
	OutputDuration      time.Duration
	Speed               float64 // output seconds produced per wall-clock second
	Fraction            float64 // max(video_frame_offset/total, audio_sample_offset/total), in [0,1]
}

// JobRecord is the persisted row for one job: the data model's DB-facing
// half of a job, as distinct from the in-memory ResolvedConfig and running
// StreamPipeline state.
type JobRecord struct {
	ID        string
	State     JobState
	Config    JobConfig
	Progress  Progress
	Error     *Error
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}
