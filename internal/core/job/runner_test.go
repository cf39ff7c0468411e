package job

import (
	"context"
	"testing"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	streams []model.StreamDescriptor
	packets []model.Packet
	pos     int
	closed  bool
}

func (r *fakeReader) Streams(ctx context.Context) ([]model.StreamDescriptor, *model.Error) { return r.streams, nil }
func (r *fakeReader) BestStream(kind model.Kind) (int, bool) {
	return model.BestStreamSelector(r.streams, kind)
}
func (r *fakeReader) ReadPacket(ctx context.Context) (model.Packet, bool, *model.Error) {
	if r.pos >= len(r.packets) {
		return model.Packet{}, false, nil
	}
	p := r.packets[r.pos]
	r.pos++
	return p, true, nil
}
func (r *fakeReader) Close() error { r.closed = true; return nil }

type fakeWriter struct {
	headerWritten  bool
	trailerWritten bool
	closed         bool
	nextIndex      int
	written        []model.Packet
}

func (w *fakeWriter) AddStream(kind model.Kind, codecName string, encoderTimeBase model.Rational) (int, model.Rational, *model.Error) {
	idx := w.nextIndex
	w.nextIndex++
	return idx, encoderTimeBase, nil
}
func (w *fakeWriter) WriteHeader() *model.Error  { w.headerWritten = true; return nil }
func (w *fakeWriter) WriteTrailer() *model.Error { w.trailerWritten = true; return nil }
func (w *fakeWriter) WritePacket(streamIndex int, pkt model.Packet) *model.Error {
	w.written = append(w.written, pkt)
	return nil
}
func (w *fakeWriter) Close() error { w.closed = true; return nil }

type fakeJobDecoder struct {
	queued []model.Frame
	ended  bool
}

func (d *fakeJobDecoder) Send(pkt model.Packet) *model.Error {
	if pkt.Data == nil {
		d.ended = true
		return nil
	}
	d.queued = append(d.queued, model.Frame{Kind: model.KindVideo, Data: pkt.Data, Width: 2, Height: 2, PixFmt: "yuv420p"})
	return nil
}
func (d *fakeJobDecoder) Recv() (model.Frame, codec.NeedStatus, *model.Error) {
	if len(d.queued) > 0 {
		f := d.queued[0]
		d.queued = d.queued[1:]
		return f, codec.HaveOutput, nil
	}
	if d.ended {
		return model.Frame{}, codec.Drained, nil
	}
	return model.Frame{}, codec.NeedMore, nil
}
func (d *fakeJobDecoder) Close() error { return nil }

type fakeJobScaler struct{}

func (fakeJobScaler) Scale(f model.Frame, w, h int, pixFmt string) (model.Frame, *model.Error) {
	return f, nil
}
func (fakeJobScaler) Close() error { return nil }

type fakeJobEncoder struct {
	queued []model.Packet
	ended  bool
}

func (e *fakeJobEncoder) Send(f model.Frame) *model.Error {
	if f.Data == nil && f.Width == 0 {
		e.ended = true
		return nil
	}
	e.queued = append(e.queued, model.Packet{Kind: model.KindVideo, PTS: f.PTS, DTS: f.PTS, TimeBase: model.Milliseconds, Data: []byte{9}})
	return nil
}
func (e *fakeJobEncoder) Recv() (model.Packet, codec.NeedStatus, *model.Error) {
	if len(e.queued) > 0 {
		p := e.queued[0]
		e.queued = e.queued[1:]
		return p, codec.HaveOutput, nil
	}
	if e.ended {
		return model.Packet{}, codec.Drained, nil
	}
	return model.Packet{}, codec.NeedMore, nil
}
func (e *fakeJobEncoder) RequiredFrameSamples() int { return 0 }
func (e *fakeJobEncoder) Close() error              { return nil }

type fakeAdapter struct {
	reader *fakeReader
	writer *fakeWriter
	caps   codec.Capabilities
}

func (a *fakeAdapter) OpenReader(ctx context.Context, path string) (codec.Reader, *model.Error) { return a.reader, nil }
func (a *fakeAdapter) OpenWriter(ctx context.Context, path string, container model.Container) (codec.Writer, *model.Error) {
	return a.writer, nil
}
func (a *fakeAdapter) OpenDecoder(ctx context.Context, stream model.StreamDescriptor) (codec.Decoder, *model.Error) {
	return &fakeJobDecoder{}, nil
}
func (a *fakeAdapter) OpenEncoder(ctx context.Context, params model.EncoderParams, stream model.StreamDescriptor) (codec.Encoder, *model.Error) {
	return &fakeJobEncoder{}, nil
}
func (a *fakeAdapter) OpenResampler(ctx context.Context, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (codec.Resampler, *model.Error) {
	return nil, model.InternalError("fake-adapter", "resampler not used in this test", nil)
}
func (a *fakeAdapter) OpenScaler(ctx context.Context) (codec.Scaler, *model.Error) { return fakeJobScaler{}, nil }
func (a *fakeAdapter) Capabilities() codec.Capabilities                           { return a.caps }

type fakeSink struct {
	progress []model.Progress
	terminal model.JobState
	err      *model.Error
}

func (s *fakeSink) OnProgress(jobID string, p model.Progress) { s.progress = append(s.progress, p) }
func (s *fakeSink) OnTerminal(jobID string, state model.JobState, err *model.Error) {
	s.terminal = state
	s.err = err
}

func TestRunner_VideoOnlyJob_WritesHeaderPacketsAndTrailer(t *testing.T) {
	reader := &fakeReader{
		streams: []model.StreamDescriptor{
			{Index: 0, Kind: model.KindVideo, Width: 2, Height: 2, PixFmt: "yuv420p", FrameRate: model.Rational{Num: 30, Den: 1}, Duration: 1, TimeBase: model.Rational{Num: 1, Den: 1}},
		},
		packets: []model.Packet{
			{StreamIndex: 0, Data: []byte{1, 2, 3}},
		},
	}
	writer := &fakeWriter{}
	adapter := &fakeAdapter{reader: reader, writer: writer, caps: testCaps()}
	sink := &fakeSink{}

	runner := NewRunner(adapter, nil, sink)
	cfg := model.JobConfig{
		InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4,
		Video: model.VideoConfig{Enabled: true, Width: model.KeepSource, Height: model.KeepSource,
			Encoder: model.EncoderParams{Codec: "libx264", RateControl: model.RateControlCRF, CRF: 23}},
	}

	runner.Run(context.Background(), "job-1", cfg)

	assert.Equal(t, model.JobStateCompleted, sink.terminal)
	assert.Nil(t, sink.err)
	assert.True(t, writer.headerWritten)
	assert.True(t, writer.trailerWritten)
	assert.True(t, writer.closed)
	assert.True(t, reader.closed)
	assert.NotEmpty(t, writer.written)
	require.NotEmpty(t, sink.progress)
	assert.Equal(t, 1.0, sink.progress[len(sink.progress)-1].Fraction)
}

func TestRunner_InvalidConfig_FailsBeforeOpeningWriter(t *testing.T) {
	reader := &fakeReader{streams: []model.StreamDescriptor{
		{Index: 0, Kind: model.KindVideo, Width: 2, Height: 2, FrameRate: model.Rational{Num: 30, Den: 1}},
	}}
	writer := &fakeWriter{}
	adapter := &fakeAdapter{reader: reader, writer: writer, caps: testCaps()}
	sink := &fakeSink{}

	runner := NewRunner(adapter, nil, sink)
	cfg := model.JobConfig{InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4}

	runner.Run(context.Background(), "job-2", cfg)

	assert.Equal(t, model.JobStateFailed, sink.terminal)
	require.NotNil(t, sink.err)
	assert.Equal(t, model.ErrKindConfig, sink.err.Kind)
	assert.False(t, writer.headerWritten)
}
