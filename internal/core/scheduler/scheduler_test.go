package scheduler

import (
	"context"
	"testing"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource hands back exactly the queued packets for the streamIndex
// asked for, so a test can assert neither burst ever receives the other
// stream's packets — the bug the real fanoutSource (internal/core/job)
// exists to prevent.
type fakeSource struct {
	byStream map[int][]model.Packet
}

func (f *fakeSource) ReadPacket(ctx context.Context, streamIndex int) (model.Packet, bool, *model.Error) {
	q := f.byStream[streamIndex]
	if len(q) == 0 {
		return model.Packet{}, false, nil
	}
	pkt := q[0]
	f.byStream[streamIndex] = q[1:]
	return pkt, true, nil
}

type passthroughDecoder struct {
	kind   model.Kind
	queued []model.Frame
	ended  bool
}

func (d *passthroughDecoder) Send(pkt model.Packet) *model.Error {
	if pkt.Data == nil {
		d.ended = true
		return nil
	}
	d.queued = append(d.queued, model.Frame{Kind: d.kind, Data: pkt.Data, Width: 2, Height: 2, PixFmt: "yuv420p", NumSamples: 1})
	return nil
}
func (d *passthroughDecoder) Recv() (model.Frame, codec.NeedStatus, *model.Error) {
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
func (d *passthroughDecoder) Close() error { return nil }

type passthroughScaler struct{}

func (passthroughScaler) Scale(f model.Frame, w, h int, pixFmt string) (model.Frame, *model.Error) {
	return f, nil
}
func (passthroughScaler) Close() error { return nil }

// passthroughResampler passes samples through one pushed frame at a time,
// matching internal/core/pipeline's own fakeResampler test convention.
type passthroughResampler struct {
	buffered int
	ended    bool
}

func (r *passthroughResampler) Push(f model.Frame) *model.Error {
	if f.Data == nil {
		r.ended = true
		return nil
	}
	r.buffered += f.NumSamples
	return nil
}

func (r *passthroughResampler) PullExact(n int) (model.Frame, codec.NeedStatus, *model.Error) {
	if r.buffered >= n {
		r.buffered -= n
		return model.Frame{Kind: model.KindAudio, NumSamples: n, Data: make([]byte, n)}, codec.HaveOutput, nil
	}
	if r.ended {
		return model.Frame{}, codec.Drained, nil
	}
	return model.Frame{}, codec.NeedMore, nil
}

func (r *passthroughResampler) PullRemainder() (model.Frame, bool, *model.Error) {
	if r.buffered > 0 {
		n := r.buffered
		r.buffered = 0
		return model.Frame{Kind: model.KindAudio, NumSamples: n, Data: make([]byte, n)}, true, nil
	}
	return model.Frame{}, false, nil
}

func (r *passthroughResampler) Close() error { return nil }

type passthroughEncoder struct {
	kind   model.Kind
	queued []model.Packet
	ended  bool
}

func (e *passthroughEncoder) Send(f model.Frame) *model.Error {
	if f.Data == nil && f.Width == 0 && f.NumSamples == 0 {
		e.ended = true
		return nil
	}
	e.queued = append(e.queued, model.Packet{Kind: e.kind, PTS: f.PTS, DTS: f.PTS, TimeBase: model.Milliseconds, Data: []byte{1}})
	return nil
}
func (e *passthroughEncoder) Recv() (model.Packet, codec.NeedStatus, *model.Error) {
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
func (e *passthroughEncoder) RequiredFrameSamples() int { return 1 }
func (e *passthroughEncoder) Close() error              { return nil }

type recordingWriter struct {
	written []model.Packet
}

func (w *recordingWriter) WritePacket(streamIndex int, pkt model.Packet) *model.Error {
	w.written = append(w.written, pkt)
	return nil
}

func TestScheduler_NeverCrossesVideoAndAudioPackets(t *testing.T) {
	source := &fakeSource{byStream: map[int][]model.Packet{
		0: {{StreamIndex: 0, Data: []byte{1}}, {StreamIndex: 0, Data: []byte{2}}},
		1: {{StreamIndex: 1, Data: []byte{3}}, {StreamIndex: 1, Data: []byte{4}}},
	}}
	writer := &recordingWriter{}

	videoDecoder := &passthroughDecoder{kind: model.KindVideo}
	videoEncoder := &passthroughEncoder{kind: model.KindVideo}
	video := pipeline.NewVideoPipeline(0, 0, videoDecoder, passthroughScaler{}, videoEncoder,
		2, 2, "yuv420p", model.Rational{Num: 30, Den: 1}, model.Milliseconds, model.Milliseconds, nil)

	audioDecoder := &passthroughDecoder{kind: model.KindAudio}
	audioEncoder := &passthroughEncoder{kind: model.KindAudio}
	audio := pipeline.NewAudioPipeline(1, 1, audioDecoder, &passthroughResampler{}, audioEncoder,
		48000, model.Milliseconds, model.Milliseconds, nil)

	sched := New(video, audio, model.Rational{Num: 30, Den: 1}, 1, 2, source, writer, nil)

	err := sched.Run(context.Background())
	require.Nil(t, err)

	assert.Equal(t, 4, len(writer.written))
	videoCount, audioCount := 0, 0
	for _, p := range writer.written {
		switch p.Kind {
		case model.KindVideo:
			videoCount++
		case model.KindAudio:
			audioCount++
		}
	}
	assert.Equal(t, 2, videoCount)
	assert.Equal(t, 2, audioCount)
}
