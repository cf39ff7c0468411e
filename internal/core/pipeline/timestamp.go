// Package pipeline holds StreamPipeline (one decode->resample/scale->
// encode chain per kept input stream) and TimestampMapper, the component
// that rescales every encoded packet into the muxer's time base before it
// reaches the writer.
package pipeline

import (
	"github.com/mantonx/transcodecore/internal/core/model"
)

// TimestampMapper finalises one pipeline's encoded packets before they
// reach the muxer: rescale pts/dts/duration into the writer's actual time
// base, enforce dts monotonicity, and clamp pts >= dts. One TimestampMapper
// is owned per pipeline so its monotonicity state never leaks across
// streams.
type TimestampMapper struct {
	outputStreamIndex int
	encoderTimeBase   model.Rational
	writerTimeBase    model.Rational

	haveLastDTS bool
	lastDTS     int64
	warnedOnce  bool
	log         Logger
}

// Logger is the narrow logging surface TimestampMapper needs to report an
// invariant violation at most once per pipeline, matching codec.Logger's
// shape without importing the codec package from here.
type Logger interface {
	Warn(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...interface{}) {}

func NewTimestampMapper(outputStreamIndex int, encoderTimeBase, writerTimeBase model.Rational, log Logger) *TimestampMapper {
	if log == nil {
		log = noopLogger{}
	}
	return &TimestampMapper{
		outputStreamIndex: outputStreamIndex,
		encoderTimeBase:   encoderTimeBase,
		writerTimeBase:    writerTimeBase,
		log:               log,
	}
}

// Finalise applies spec.md §4.3 steps 1-4 in place and returns the
// muxer-ready packet.
func (m *TimestampMapper) Finalise(pkt model.Packet) model.Packet {
	pkt.StreamIndex = m.outputStreamIndex

	if pkt.PTS != model.PTSUnset {
		pkt.PTS = model.Rescale(pkt.PTS, m.encoderTimeBase, m.writerTimeBase)
	}
	if pkt.DTS != model.PTSUnset {
		pkt.DTS = model.Rescale(pkt.DTS, m.encoderTimeBase, m.writerTimeBase)
	}
	if pkt.Duration != 0 {
		pkt.Duration = model.Rescale(pkt.Duration, m.encoderTimeBase, m.writerTimeBase)
	}
	pkt.TimeBase = m.writerTimeBase

	if pkt.DTS != model.PTSUnset {
		if m.haveLastDTS && pkt.DTS <= m.lastDTS {
			if !m.warnedOnce {
				m.log.Warn("dts monotonicity violated, correcting", "stream_index", m.outputStreamIndex, "dts", pkt.DTS, "last_dts", m.lastDTS)
				m.warnedOnce = true
			}
			pkt.DTS = m.lastDTS + 1
		}
		m.lastDTS = pkt.DTS
		m.haveLastDTS = true
	}

	if pkt.PTS != model.PTSUnset && pkt.DTS != model.PTSUnset && pkt.PTS < pkt.DTS {
		pkt.PTS = pkt.DTS
	}

	return pkt
}

// EncoderTimeBaseForVideo picks the encoder time base request for a video
// stream: 1/1000 unless frame_rate*1000 isn't integral, in which case the
// frame rate's own denominator-derived tick is used so every frame lands
// on an exact tick.
func EncoderTimeBaseForVideo(frameRate model.Rational) model.Rational {
	if frameRate.Den == 0 {
		return model.Milliseconds
	}
	if (frameRate.Num*1000)%frameRate.Den == 0 {
		return model.Milliseconds
	}
	return model.Rational{Num: frameRate.Den, Den: frameRate.Num * 1000}.Reduce()
}

// EncoderTimeBaseForAudio is always 1/sample_rate.
func EncoderTimeBaseForAudio(sampleRate int) model.Rational {
	return model.SampleRateBase(sampleRate)
}
