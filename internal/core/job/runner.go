package job

import (
	"context"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/pipeline"
	"github.com/mantonx/transcodecore/internal/core/scheduler"
)

// ProgressSink receives the events JobRunner emits while a job runs: at
// most one Progress call per burst (spec.md §4.5), and exactly one terminal
// call when the run ends.
type ProgressSink interface {
	OnProgress(jobID string, p model.Progress)
	OnTerminal(jobID string, state model.JobState, err *model.Error)
}

// Runner drives one job from a resolved config through to a written,
// trailered output file, per spec.md §4.5's seven-step sequence.
type Runner struct {
	adapter  codec.CodecAdapter
	resolver *Resolver
	log      codec.Logger
	sink     ProgressSink
}

func NewRunner(adapter codec.CodecAdapter, log codec.Logger, sink ProgressSink) *Runner {
	return &Runner{adapter: adapter, resolver: NewResolver(adapter.Capabilities()), log: log, sink: sink}
}

// Run executes one job to completion. It never returns until the job has
// reached a terminal state; the terminal state itself is reported through
// ProgressSink, not the return value, since a JobRunner failure and a
// cooperative cancel both need the same cleanup path.
func (r *Runner) Run(ctx context.Context, jobID string, cfg model.JobConfig) {
	reader, err := r.adapter.OpenReader(ctx, cfg.InputPath)
	if err != nil {
		r.sink.OnTerminal(jobID, model.JobStateFailed, err)
		return
	}
	defer reader.Close()

	streams, err := reader.Streams(ctx)
	if err != nil {
		r.sink.OnTerminal(jobID, model.JobStateFailed, err)
		return
	}

	resolved, err := r.resolver.Resolve(cfg, streams)
	if err != nil {
		r.sink.OnTerminal(jobID, model.JobStateFailed, err)
		return
	}

	writer, err := r.adapter.OpenWriter(ctx, resolved.OutputPath, resolved.Container)
	if err != nil {
		r.sink.OnTerminal(jobID, model.JobStateFailed, err)
		return
	}
	defer writer.Close()

	build := &pipelineBuilder{adapter: r.adapter, streams: streams, writer: writer, log: pipelineLogger{r.log}}

	var videoPipe, audioPipe *pipeline.StreamPipeline
	var inputDurationSeconds float64
	var expectedSamples int64

	if resolved.VideoStreamIndex >= 0 {
		videoPipe, err = build.video(ctx, resolved)
		if err != nil {
			r.sink.OnTerminal(jobID, model.JobStateFailed, err)
			return
		}
		if desc, ok := findStream(streams, resolved.VideoStreamIndex); ok {
			inputDurationSeconds = desc.TimeBase.Seconds(desc.Duration)
		}
	}

	if resolved.AudioStreamIndex >= 0 {
		audioPipe, err = build.audio(ctx, resolved)
		if err != nil {
			r.sink.OnTerminal(jobID, model.JobStateFailed, err)
			return
		}
		if desc, ok := findStream(streams, resolved.AudioStreamIndex); ok {
			audioDurationSeconds := desc.TimeBase.Seconds(desc.Duration)
			if audioDurationSeconds > inputDurationSeconds {
				inputDurationSeconds = audioDurationSeconds
			}
			expectedSamples = int64(audioDurationSeconds * float64(resolved.Audio.SampleRate))
		}
	}

	defer func() {
		if videoPipe != nil {
			videoPipe.Close()
		}
		if audioPipe != nil {
			audioPipe.Close()
		}
	}()

	if err := writer.WriteHeader(); err != nil {
		r.sink.OnTerminal(jobID, model.JobStateFailed, err)
		return
	}

	source := newFanoutSource(reader)
	onProgress := func(videoFrameOffset, totalVideoFrames, audioSampleOffset, expectedSamples int64) {
		r.sink.OnProgress(jobID, computeProgress(videoFrameOffset, totalVideoFrames, audioSampleOffset, expectedSamples))
	}

	sched := scheduler.New(videoPipe, audioPipe, resolved.Video.FrameRate, inputDurationSeconds, expectedSamples, source, writer, onProgress)
	runErr := sched.Run(ctx)

	if trailerErr := writer.WriteTrailer(); trailerErr != nil && runErr == nil {
		runErr = trailerErr
	}

	if runErr != nil {
		if scheduler.Cancelled(runErr) {
			r.sink.OnTerminal(jobID, model.JobStateCancelled, runErr)
			return
		}
		r.sink.OnTerminal(jobID, model.JobStateFailed, runErr)
		return
	}

	r.sink.OnProgress(jobID, model.Progress{Fraction: 1})
	r.sink.OnTerminal(jobID, model.JobStateCompleted, nil)
}

// computeProgress implements spec.md §4.5's fraction:
// max(video_frame_offset/total_frames, audio_sample_offset/expected_samples),
// clamped below 1 until the terminal Success event fires it at exactly 1.
func computeProgress(videoFrameOffset, totalVideoFrames, audioSampleOffset, expectedSamples int64) model.Progress {
	frac := 0.0
	if totalVideoFrames > 0 {
		frac = float64(videoFrameOffset) / float64(totalVideoFrames)
	}
	if expectedSamples > 0 {
		af := float64(audioSampleOffset) / float64(expectedSamples)
		if af > frac {
			frac = af
		}
	}
	if frac >= 1 {
		frac = 0.999
	}
	return model.Progress{VideoFramesEncoded: videoFrameOffset, AudioSamplesEncoded: audioSampleOffset, Fraction: frac}
}

func findStream(streams []model.StreamDescriptor, index int) (model.StreamDescriptor, bool) {
	for _, s := range streams {
		if s.Index == index {
			return s, true
		}
	}
	return model.StreamDescriptor{}, false
}

// pipelineLogger adapts codec.Logger to pipeline.Logger's narrow Warn-only
// surface.
type pipelineLogger struct {
	log codec.Logger
}

func (l pipelineLogger) Warn(msg string, args ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.Warn(msg, args...)
}

// pipelineBuilder opens every codec resource one kept stream needs and
// wires it into a StreamPipeline, keeping Runner.Run itself readable as the
// seven-step sequence spec.md §4.5 describes.
type pipelineBuilder struct {
	adapter codec.CodecAdapter
	streams []model.StreamDescriptor
	writer  codec.Writer
	log     pipelineLogger
}

func (b *pipelineBuilder) video(ctx context.Context, resolved model.ResolvedConfig) (*pipeline.StreamPipeline, *model.Error) {
	inputDesc, ok := findStream(b.streams, resolved.VideoStreamIndex)
	if !ok {
		return nil, model.InternalError("job-runner", "resolved video stream index not found", nil)
	}

	decoder, err := b.adapter.OpenDecoder(ctx, inputDesc)
	if err != nil {
		return nil, err
	}
	scaler, err := b.adapter.OpenScaler(ctx)
	if err != nil {
		return nil, err
	}

	targetDesc := model.StreamDescriptor{
		Kind: model.KindVideo, Width: resolved.Video.Width, Height: resolved.Video.Height,
		PixFmt: resolved.Video.PixFmt, FrameRate: resolved.Video.FrameRate,
	}
	encoder, err := b.adapter.OpenEncoder(ctx, resolved.Video.Encoder, targetDesc)
	if err != nil {
		return nil, err
	}

	encoderTimeBase := pipeline.EncoderTimeBaseForVideo(resolved.Video.FrameRate)
	outputIdx, muxerTimeBase, err := b.writer.AddStream(model.KindVideo, resolved.Video.Encoder.Codec, encoderTimeBase)
	if err != nil {
		return nil, err
	}

	return pipeline.NewVideoPipeline(resolved.VideoStreamIndex, outputIdx, decoder, scaler, encoder,
		resolved.Video.Width, resolved.Video.Height, resolved.Video.PixFmt, resolved.Video.FrameRate,
		encoderTimeBase, muxerTimeBase, b.log), nil
}

func (b *pipelineBuilder) audio(ctx context.Context, resolved model.ResolvedConfig) (*pipeline.StreamPipeline, *model.Error) {
	inputDesc, ok := findStream(b.streams, resolved.AudioStreamIndex)
	if !ok {
		return nil, model.InternalError("job-runner", "resolved audio stream index not found", nil)
	}

	decoder, err := b.adapter.OpenDecoder(ctx, inputDesc)
	if err != nil {
		return nil, err
	}
	resampler, err := b.adapter.OpenResampler(ctx, inputDesc.SampleRate, resolved.Audio.SampleRate,
		inputDesc.Channels, resolved.Audio.Channels, resolved.Audio.SampleFmt)
	if err != nil {
		return nil, err
	}

	targetDesc := model.StreamDescriptor{
		Kind: model.KindAudio, SampleRate: resolved.Audio.SampleRate,
		Channels: resolved.Audio.Channels, SampleFmt: resolved.Audio.SampleFmt,
	}
	encoder, err := b.adapter.OpenEncoder(ctx, resolved.Audio.Encoder, targetDesc)
	if err != nil {
		return nil, err
	}

	encoderTimeBase := pipeline.EncoderTimeBaseForAudio(resolved.Audio.SampleRate)
	outputIdx, muxerTimeBase, err := b.writer.AddStream(model.KindAudio, resolved.Audio.Encoder.Codec, encoderTimeBase)
	if err != nil {
		return nil, err
	}

	return pipeline.NewAudioPipeline(resolved.AudioStreamIndex, outputIdx, decoder, resampler, encoder,
		resolved.Audio.SampleRate, encoderTimeBase, muxerTimeBase, b.log), nil
}
