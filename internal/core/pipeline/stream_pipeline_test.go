package pipeline

import (
	"testing"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder treats every non-null Send as producing exactly one Frame on
// the next Recv, and signals Drained once Send(Null) has been seen and its
// queued frame consumed.
type fakeDecoder struct {
	queued []model.Frame
	ended  bool
}

func (d *fakeDecoder) Send(pkt model.Packet) *model.Error {
	if pkt.Data == nil {
		d.ended = true
		return nil
	}
	d.queued = append(d.queued, model.Frame{Kind: model.KindVideo, Data: pkt.Data})
	return nil
}

func (d *fakeDecoder) Recv() (model.Frame, codec.NeedStatus, *model.Error) {
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

func (d *fakeDecoder) Close() error { return nil }

type fakeScaler struct{}

func (fakeScaler) Scale(f model.Frame, w, h int, pixFmt string) (model.Frame, *model.Error) {
	f.Width, f.Height, f.PixFmt = w, h, pixFmt
	return f, nil
}
func (fakeScaler) Close() error { return nil }

// fakeEncoder emits exactly one Packet per Send, echoing an incrementing
// counter so tests can check output ordering; RequiredFrameSamples is
// configurable to exercise the audio fixed-frame-size path.
type fakeEncoder struct {
	kind     model.Kind
	required int
	queued   []model.Packet
	ended    bool
	n        int64
}

func (e *fakeEncoder) Send(f model.Frame) *model.Error {
	if f.Data == nil && f.NumSamples == 0 && f.Width == 0 {
		e.ended = true
		return nil
	}
	e.queued = append(e.queued, model.Packet{Kind: e.kind, PTS: f.PTS, DTS: f.PTS, TimeBase: f.TimeBase})
	e.n++
	return nil
}

func (e *fakeEncoder) Recv() (model.Packet, codec.NeedStatus, *model.Error) {
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

func (e *fakeEncoder) RequiredFrameSamples() int { return e.required }
func (e *fakeEncoder) Close() error              { return nil }

// fakeResampler passes frames through whole, one in one out, so tests can
// drive PullExact with a known required size.
type fakeResampler struct {
	buffered   int
	sampleRate int
	channels   int
	ended      bool
}

func (r *fakeResampler) Push(f model.Frame) *model.Error {
	if f.Data == nil {
		r.ended = true
		return nil
	}
	r.buffered += f.NumSamples
	return nil
}

func (r *fakeResampler) PullExact(n int) (model.Frame, codec.NeedStatus, *model.Error) {
	if r.buffered >= n {
		r.buffered -= n
		return model.Frame{Kind: model.KindAudio, NumSamples: n, Data: make([]byte, n), SampleRate: r.sampleRate, Channels: r.channels}, codec.HaveOutput, nil
	}
	if r.ended {
		return model.Frame{}, codec.Drained, nil
	}
	return model.Frame{}, codec.NeedMore, nil
}

func (r *fakeResampler) PullRemainder() (model.Frame, bool, *model.Error) {
	if r.buffered > 0 {
		n := r.buffered
		r.buffered = 0
		return model.Frame{Kind: model.KindAudio, NumSamples: n, Data: make([]byte, n)}, true, nil
	}
	return model.Frame{}, false, nil
}

func (r *fakeResampler) Close() error { return nil }

func TestStreamPipeline_PushPacket_AbsorbsWrongStream(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{kind: model.KindVideo}
	p := NewVideoPipeline(0, 0, dec, fakeScaler{}, enc, 640, 480, "yuv420p", model.Rational{Num: 30, Den: 1}, model.Milliseconds, model.Milliseconds, nil)

	res := p.PushPacket(model.Packet{StreamIndex: 9, Data: []byte{1}})
	assert.Equal(t, Absorbed, res.Status)
}

func TestStreamPipeline_VideoPushPacket_EncodesWithFrameIndexPTS(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{kind: model.KindVideo}
	p := NewVideoPipeline(0, 0, dec, fakeScaler{}, enc, 640, 480, "yuv420p", model.Rational{Num: 30, Den: 1}, model.Milliseconds, model.Milliseconds, nil)

	res1 := p.PushPacket(model.Packet{StreamIndex: 0, Data: []byte{1, 2, 3}})
	require.Equal(t, Drained, res1.Status)
	require.Len(t, res1.Packets, 1)
	assert.Equal(t, int64(0), res1.Packets[0].PTS)

	res2 := p.PushPacket(model.Packet{StreamIndex: 0, Data: []byte{4, 5, 6}})
	require.Len(t, res2.Packets, 1)
	assert.Equal(t, int64(33), res2.Packets[0].PTS) // 1/30s in ms, truncated
}

func TestStreamPipeline_AudioPushPacket_TracksSampleOffset(t *testing.T) {
	dec := &fakeDecoder{}
	resampler := &fakeResampler{sampleRate: 48000, channels: 2}
	enc := &fakeEncoder{kind: model.KindAudio, required: 1024}
	p := NewAudioPipeline(0, 0, dec, resampler, enc, 48000, model.SampleRateBase(48000), model.SampleRateBase(48000), nil)

	dec.queued = append(dec.queued, model.Frame{Kind: model.KindAudio, NumSamples: 1024, Data: make([]byte, 1024)})
	res := p.PushPacket(model.Packet{StreamIndex: 0, Data: []byte{1}})
	require.Equal(t, Drained, res.Status)
	require.Len(t, res.Packets, 1)
	assert.Equal(t, int64(0), res.Packets[0].PTS)
	assert.Equal(t, int64(1024), p.sampleOffset)
}

func TestStreamPipeline_Flush_RunsFourStepProtocol(t *testing.T) {
	dec := &fakeDecoder{}
	resampler := &fakeResampler{sampleRate: 48000, channels: 2, buffered: 500}
	enc := &fakeEncoder{kind: model.KindAudio, required: 1024}
	p := NewAudioPipeline(0, 0, dec, resampler, enc, 48000, model.SampleRateBase(48000), model.SampleRateBase(48000), nil)
	p.sampleOffset = 2048

	packets, err := p.Flush()
	require.Nil(t, err)
	assert.Equal(t, Done, p.Flushing)
	require.True(t, dec.ended)
	require.True(t, resampler.ended)
	require.True(t, enc.ended)
	// Short remainder frame must carry pts = sample_offset at flush time and
	// must not advance sample_offset further.
	require.NotEmpty(t, packets)
	last := packets[len(packets)-1]
	assert.Equal(t, int64(2048), last.PTS)
	assert.Equal(t, int64(2048), p.sampleOffset)
}

func TestStreamPipeline_PushPacket_AfterFlushReturnsPipelineEnded(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{kind: model.KindVideo}
	p := NewVideoPipeline(0, 0, dec, fakeScaler{}, enc, 640, 480, "yuv420p", model.Rational{Num: 30, Den: 1}, model.Milliseconds, model.Milliseconds, nil)
	p.Flushing = Done

	res := p.PushPacket(model.Packet{StreamIndex: 0, Data: []byte{1}})
	assert.Equal(t, PipelineEnded, res.Status)
}
