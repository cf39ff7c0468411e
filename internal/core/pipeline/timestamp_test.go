package pipeline

import (
	"testing"

	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampMapper_RescalesAndStampsStreamIndex(t *testing.T) {
	m := NewTimestampMapper(3, model.Milliseconds, model.Rational{Num: 1, Den: 90000}, nil)

	pkt := model.Packet{StreamIndex: 0, PTS: 1000, DTS: 1000, Duration: 40, TimeBase: model.Milliseconds}
	out := m.Finalise(pkt)

	require.Equal(t, 3, out.StreamIndex)
	assert.Equal(t, int64(90000), out.PTS) // 1000ms -> 90000 ticks @ 90kHz
	assert.Equal(t, int64(90000), out.DTS)
}

func TestTimestampMapper_EnforcesDTSMonotonicity(t *testing.T) {
	m := NewTimestampMapper(0, model.Rational{Num: 1, Den: 90000}, model.Rational{Num: 1, Den: 90000}, nil)

	first := m.Finalise(model.Packet{DTS: 100, PTS: 100, TimeBase: model.Rational{Num: 1, Den: 90000}})
	second := m.Finalise(model.Packet{DTS: 100, PTS: 100, TimeBase: model.Rational{Num: 1, Den: 90000}})
	third := m.Finalise(model.Packet{DTS: 50, PTS: 50, TimeBase: model.Rational{Num: 1, Den: 90000}})

	assert.Equal(t, int64(100), first.DTS)
	assert.Equal(t, int64(101), second.DTS, "equal dts must be bumped forward")
	assert.Equal(t, int64(102), third.DTS, "decreasing dts must still be bumped forward")
}

func TestTimestampMapper_ClampsPTSToDTS(t *testing.T) {
	m := NewTimestampMapper(0, model.Rational{Num: 1, Den: 1}, model.Rational{Num: 1, Den: 1}, nil)
	out := m.Finalise(model.Packet{PTS: 5, DTS: 10, TimeBase: model.Rational{Num: 1, Den: 1}})
	assert.Equal(t, int64(10), out.PTS)
}

func TestTimestampMapper_LeavesUnsetTimestampsAlone(t *testing.T) {
	m := NewTimestampMapper(0, model.Milliseconds, model.Rational{Num: 1, Den: 90000}, nil)
	out := m.Finalise(model.Packet{PTS: model.PTSUnset, DTS: model.PTSUnset})
	assert.Equal(t, model.PTSUnset, out.PTS)
	assert.Equal(t, model.PTSUnset, out.DTS)
}

func TestEncoderTimeBaseForVideo(t *testing.T) {
	assert.Equal(t, model.Milliseconds, EncoderTimeBaseForVideo(model.Rational{Num: 30, Den: 1}))
	assert.Equal(t, model.Milliseconds, EncoderTimeBaseForVideo(model.Rational{Num: 25, Den: 1}))
	// 24000/1001 * 1000 is not integral, so it must not collapse to 1/1000.
	tb := EncoderTimeBaseForVideo(model.Rational{Num: 24000, Den: 1001})
	assert.NotEqual(t, model.Milliseconds, tb)
}

func TestEncoderTimeBaseForAudio(t *testing.T) {
	assert.Equal(t, model.Rational{Num: 1, Den: 48000}, EncoderTimeBaseForAudio(48000))
}
