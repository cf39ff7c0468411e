// Package scheduler implements InterleaveScheduler: the 0.5-second
// wall-of-media-time burst loop that drives every StreamPipeline of one
// job and runs the end-of-stream flush sequence across all of them.
package scheduler

import (
	"context"
	"time"

	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/pipeline"
)

// burstSeconds is the media-time window each scheduler iteration advances,
// spec.md §4.4: "advances streams in 0.5-second media-time bursts".
const burstSeconds = 0.5

// interBurstSleep is the cooperative-preemption yield between bursts,
// spec.md §5: "brief sleep between bursts (≈5 ms) to smooth CPU use".
const interBurstSleep = 5 * time.Millisecond

// Source feeds packets to the scheduler; JobRunner implements this over its
// single open codec.Reader, fanning the one compressed stream out to two
// per-stream-index queues so a burst pulling video packets never discards
// interleaved audio packets (and vice versa).
type Source interface {
	// ReadPacket returns the next buffered packet for streamIndex, pulling
	// and fanning out from the underlying reader as needed. ok is false
	// once the underlying reader has reached end of input and streamIndex's
	// queue is empty.
	ReadPacket(ctx context.Context, streamIndex int) (model.Packet, bool, *model.Error)
}

// PacketWriter is the minimal muxer surface the scheduler writes finalised
// packets to.
type PacketWriter interface {
	WritePacket(streamIndex int, pkt model.Packet) *model.Error
}

// ProgressFunc is invoked at most once per burst with a coalesced snapshot,
// spec.md §4.5: "Listeners receive at most one progress event per burst".
type ProgressFunc func(videoFrameOffset, totalVideoFrames int64, audioSampleOffset, expectedSamples int64)

// Scheduler drives every StreamPipeline of one job.
type Scheduler struct {
	video *pipeline.StreamPipeline
	audio *pipeline.StreamPipeline

	targetFPS        model.Rational
	totalVideoFrames int64
	expectedSamples  int64

	source Source
	writer PacketWriter
	onProgress ProgressFunc
}

// New builds a Scheduler. video/audio may individually be nil if that
// stream was disabled for the job; at least one must be non-nil.
func New(video, audio *pipeline.StreamPipeline, targetFPS model.Rational, inputVideoDurationSeconds float64,
	expectedSamples int64, source Source, writer PacketWriter, onProgress ProgressFunc) *Scheduler {
	total := int64(1)
	if targetFPS.Num > 0 && targetFPS.Den > 0 {
		frames := inputVideoDurationSeconds * float64(targetFPS.Num) / float64(targetFPS.Den)
		total = int64(frames + 0.5)
		if total < 1 {
			total = 1
		}
	}
	return &Scheduler{
		video: video, audio: audio,
		targetFPS: targetFPS, totalVideoFrames: total, expectedSamples: expectedSamples,
		source: source, writer: writer, onProgress: onProgress,
	}
}

// Run executes spec.md §4.4's algorithm to completion, cancellation, or
// failure.
func (s *Scheduler) Run(ctx context.Context) *model.Error {
	frameOffset := int64(0)
	limit := 0.0

	for {
		select {
		case <-ctx.Done():
			return s.flushAll(ctx, true)
		default:
		}

		limit += burstSeconds

		videoDone := true
		if s.video != nil {
			var err *model.Error
			frameOffset, videoDone, err = s.runVideoBurst(ctx, limit, frameOffset)
			if err != nil {
				return err
			}
		}

		audioDone := true
		if s.audio != nil {
			var err *model.Error
			audioDone, err = s.runAudioBurst(ctx, limit)
			if err != nil {
				return err
			}
		}

		if s.onProgress != nil {
			s.onProgress(frameOffset, s.totalVideoFrames, s.sampleOffset(), s.expectedSamples)
		}

		if videoDone && audioDone {
			break
		}

		select {
		case <-ctx.Done():
			return s.flushAll(ctx, true)
		case <-time.After(interBurstSleep):
		}
	}

	return s.flushAll(ctx, false)
}

func (s *Scheduler) sampleOffset() int64 {
	if s.audio == nil {
		return 0
	}
	return s.audio.SampleOffset()
}

// runVideoBurst pulls input packets and drives the video pipeline while
// frame_offset/target_fps <= limit, per spec.md §4.4.
func (s *Scheduler) runVideoBurst(ctx context.Context, limit float64, frameOffset int64) (int64, bool, *model.Error) {
	fps := s.targetFPS.Seconds(1)
	if fps <= 0 {
		fps = 1
	}
	for float64(frameOffset)/fps <= limit {
		if frameOffset >= s.totalVideoFrames {
			return frameOffset, true, nil
		}
		pkt, ok, err := s.source.ReadPacket(ctx, s.video.InputStreamIndex)
		if err != nil {
			return frameOffset, false, err
		}
		if !ok {
			return frameOffset, true, nil
		}
		res := s.video.PushPacket(pkt)
		switch res.Status {
		case pipeline.PushFailed:
			return frameOffset, false, res.Err
		case pipeline.Drained:
			for _, p := range res.Packets {
				if werr := s.writer.WritePacket(p.StreamIndex, p); werr != nil {
					return frameOffset, false, werr
				}
			}
			if len(res.Packets) > 0 {
				frameOffset += int64(len(res.Packets))
			}
		}
	}
	return frameOffset, frameOffset >= s.totalVideoFrames, nil
}

// runAudioBurst reads input packets until the last encoded frame's pts
// exceeds limit or input ends, per spec.md §4.4.
func (s *Scheduler) runAudioBurst(ctx context.Context, limit float64) (bool, *model.Error) {
	for {
		sec := float64(s.audio.SampleOffset()) / float64(max1(s.audio.OutputSampleRate()))
		if sec > limit {
			return false, nil
		}
		pkt, ok, err := s.source.ReadPacket(ctx, s.audio.InputStreamIndex)
		if err != nil {
			return false, err
		}
		if !ok {
			s.audio.Flushing = pipeline.DecoderDrained
			return true, nil
		}
		res := s.audio.PushPacket(pkt)
		switch res.Status {
		case pipeline.PushFailed:
			return false, res.Err
		case pipeline.Drained:
			for _, p := range res.Packets {
				if werr := s.writer.WritePacket(p.StreamIndex, p); werr != nil {
					return false, werr
				}
			}
		}
	}
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

// flushAll runs the end-of-stream flush protocol across every pipeline.
// ctx is checked before each pipeline's flush step; a cancel seen there
// also turns the result into the cancel error. On cancel
// (cancelled==true) it still attempts every flush step so the writer can
// be trailered/closed by the caller afterwards, per spec.md §4.4's
// terminal-cancel path.
func (s *Scheduler) flushAll(ctx context.Context, cancelled bool) *model.Error {
	var firstErr *model.Error
	for _, p := range []*pipeline.StreamPipeline{s.video, s.audio} {
		if p == nil {
			continue
		}
		if ctx.Err() != nil {
			cancelled = true
		}
		pkts, err := p.Flush()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		for _, pk := range pkts {
			if werr := s.writer.WritePacket(pk.StreamIndex, pk); werr != nil && firstErr == nil {
				firstErr = werr
			}
		}
	}
	if cancelled {
		return model.CancelledError("scheduler")
	}
	return firstErr
}

// Cancelled reports whether the given error from Run represents the
// cooperative-cancel terminal path rather than a genuine failure.
func Cancelled(err *model.Error) bool {
	return err != nil && err.Kind == model.ErrKindCancelled
}
