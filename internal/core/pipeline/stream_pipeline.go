package pipeline

import (
	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// FlushPhase is the per-pipeline flush state machine (spec.md §3): a
// pipeline's input is accepted only in Active; once flush begins it moves
// forward one step at a time and never backward.
type FlushPhase int

const (
	Active FlushPhase = iota
	DecoderDrained
	ResamplerDrained
	EncoderDrained
	Done
)

// PushStatus is the result kind of StreamPipeline.PushPacket.
type PushStatus int

const (
	Absorbed PushStatus = iota
	Drained
	PipelineEnded
	PushFailed
)

type PushResult struct {
	Status  PushStatus
	Packets []model.Packet
	Err     *model.Error
}

// StreamPipeline owns one kept input stream's decode -> (resample|scale)
// -> encode chain, its output stream index, its TimestampMapper, and (for
// audio) the sample_offset counter / (for video) the frame-index counter
// spec.md §3 calls "StreamPipeline state".
type StreamPipeline struct {
	Kind              model.Kind
	InputStreamIndex  int
	OutputStreamIndex int

	decoder   codec.Decoder
	resampler codec.Resampler // audio only
	scaler    codec.Scaler    // video only
	encoder   codec.Encoder
	mapper    *TimestampMapper

	// Video target parameters, used by Scale and for the frame-index grid.
	targetWidth, targetHeight int
	targetPixFmt              string
	targetFrameRate           model.Rational
	encoderTimeBase           model.Rational
	videoFrameIndex           int64

	// Audio sample offset, spec.md §3 invariant 3.
	sampleOffset     int64
	outputSampleRate int

	Flushing FlushPhase
	Required bool // true for the primary selected video/audio stream
}

// SampleOffset returns the audio pipeline's running sample_offset counter
// (spec.md §3 invariant 3). Zero for video pipelines.
func (p *StreamPipeline) SampleOffset() int64 { return p.sampleOffset }

// OutputSampleRate returns the audio pipeline's resolved output sample
// rate, used by the scheduler to convert sample_offset into media seconds.
func (p *StreamPipeline) OutputSampleRate() int { return p.outputSampleRate }

// NewVideoPipeline wires a decoder/scaler/encoder chain for a kept video
// stream.
func NewVideoPipeline(inputIdx, outputIdx int, decoder codec.Decoder, scaler codec.Scaler, encoder codec.Encoder,
	width, height int, pixFmt string, frameRate, encoderTimeBase, writerTimeBase model.Rational, log Logger) *StreamPipeline {
	return &StreamPipeline{
		Kind:              model.KindVideo,
		InputStreamIndex:  inputIdx,
		OutputStreamIndex: outputIdx,
		decoder:           decoder,
		scaler:            scaler,
		encoder:           encoder,
		mapper:            NewTimestampMapper(outputIdx, encoderTimeBase, writerTimeBase, log),
		targetWidth:       width,
		targetHeight:      height,
		targetPixFmt:      pixFmt,
		targetFrameRate:   frameRate,
		encoderTimeBase:   encoderTimeBase,
		Required:          true,
	}
}

// NewAudioPipeline wires a decoder/resampler/encoder chain for a kept
// audio stream.
func NewAudioPipeline(inputIdx, outputIdx int, decoder codec.Decoder, resampler codec.Resampler, encoder codec.Encoder,
	outputSampleRate int, encoderTimeBase, writerTimeBase model.Rational, log Logger) *StreamPipeline {
	return &StreamPipeline{
		Kind:              model.KindAudio,
		InputStreamIndex:  inputIdx,
		OutputStreamIndex: outputIdx,
		decoder:           decoder,
		resampler:         resampler,
		encoder:           encoder,
		mapper:            NewTimestampMapper(outputIdx, encoderTimeBase, writerTimeBase, log),
		encoderTimeBase:   encoderTimeBase,
		outputSampleRate:  outputSampleRate,
		Required:          true,
	}
}

// videoFramePTS converts frame index n into the encoder's time base ticks
// for logical pts = n / target_fps seconds.
func (p *StreamPipeline) videoFramePTS(n int64) int64 {
	if p.targetFrameRate.Num == 0 || p.encoderTimeBase.Den == 0 {
		return n
	}
	// ticks = n * (1/fps) / encoderTimeBase.Seconds(1)
	//       = n * fps.Den * encoderTimeBase.Den / (fps.Num * encoderTimeBase.Num)
	num := n * p.targetFrameRate.Den * p.encoderTimeBase.Den
	den := p.targetFrameRate.Num * p.encoderTimeBase.Num
	if den == 0 {
		return n
	}
	return num / den
}

// PushPacket implements spec.md §4.2: absorbs a packet belonging to a
// different stream, otherwise decodes it and drives resample/scale and
// encode, returning every packet the encoder produced, already finalised
// by TimestampMapper.
func (p *StreamPipeline) PushPacket(pkt model.Packet) PushResult {
	if p.Flushing != Active {
		return PushResult{Status: PipelineEnded}
	}
	if pkt.StreamIndex != p.InputStreamIndex {
		return PushResult{Status: Absorbed}
	}

	if err := p.decoder.Send(pkt); err != nil {
		return PushResult{Status: PushFailed, Err: err}
	}

	var out []model.Packet
	for {
		frame, status, err := p.decoder.Recv()
		if err != nil {
			return PushResult{Status: PushFailed, Err: err}
		}
		if status == codec.NeedMore {
			break
		}
		if status == codec.Drained {
			break
		}

		produced, err := p.processDecodedFrame(frame)
		if err != nil {
			return PushResult{Status: PushFailed, Err: err}
		}
		out = append(out, produced...)
	}

	return PushResult{Status: Drained, Packets: out}
}

// processDecodedFrame runs one decoded frame through scale+encode (video)
// or resample+encode (audio), returning every muxer-ready packet the
// encoder emits as a result.
func (p *StreamPipeline) processDecodedFrame(frame model.Frame) ([]model.Packet, *model.Error) {
	var out []model.Packet
	if p.Kind == model.KindVideo {
		scaled, err := p.scaler.Scale(frame, p.targetWidth, p.targetHeight, p.targetPixFmt)
		if err != nil {
			return nil, err
		}
		scaled.PTS = p.videoFramePTS(p.videoFrameIndex)
		p.videoFrameIndex++
		if err := p.encoder.Send(scaled); err != nil {
			return nil, err
		}
		pkts, err := p.drainEncoder()
		if err != nil {
			return nil, err
		}
		return pkts, nil
	}

	if p.resampler == nil {
		return nil, model.InternalError("stream-pipeline", "audio pipeline has no resampler", nil)
	}
	if err := p.resampler.Push(frame); err != nil {
		return nil, err
	}
	required := p.encoder.RequiredFrameSamples()
	if required <= 0 {
		required = 1024
	}
	for {
		resampled, status, err := p.resampler.PullExact(required)
		if err != nil {
			return nil, err
		}
		if status != codec.HaveOutput {
			break
		}
		resampled.PTS = p.sampleOffset
		p.sampleOffset += int64(resampled.NumSamples)
		if err := p.encoder.Send(resampled); err != nil {
			return nil, err
		}
		pkts, err := p.drainEncoder()
		if err != nil {
			return nil, err
		}
		out = append(out, pkts...)
	}
	return out, nil
}

func (p *StreamPipeline) drainEncoder() ([]model.Packet, *model.Error) {
	var out []model.Packet
	for {
		pkt, status, err := p.encoder.Recv()
		if err != nil {
			return nil, err
		}
		if status != codec.HaveOutput {
			break
		}
		out = append(out, p.mapper.Finalise(pkt))
	}
	return out, nil
}

// Flush implements the four-step end-of-stream protocol of spec.md §4.4.
func (p *StreamPipeline) Flush() ([]model.Packet, *model.Error) {
	var out []model.Packet

	if err := p.decoder.Send(model.Packet{}); err != nil {
		return nil, err
	}
	for {
		frame, status, err := p.decoder.Recv()
		if err != nil {
			return nil, err
		}
		if status == codec.Drained {
			break
		}
		if status == codec.NeedMore {
			continue
		}
		produced, err := p.processDecodedFrame(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, produced...)
	}
	p.Flushing = DecoderDrained

	if p.Kind == model.KindAudio {
		if p.resampler == nil {
			return nil, model.InternalError("stream-pipeline", "audio pipeline has no resampler", nil)
		}
		if err := p.resampler.Push(model.Frame{}); err != nil {
			return nil, err
		}
		required := p.encoder.RequiredFrameSamples()
		if required <= 0 {
			required = 1024
		}
		for {
			resampled, status, err := p.resampler.PullExact(required)
			if err != nil {
				return nil, err
			}
			if status != codec.HaveOutput {
				break
			}
			resampled.PTS = p.sampleOffset
			p.sampleOffset += int64(resampled.NumSamples)
			if err := p.encoder.Send(resampled); err != nil {
				return nil, err
			}
			pkts, err := p.drainEncoder()
			if err != nil {
				return nil, err
			}
			out = append(out, pkts...)
		}
		remainder, ok, err := p.resampler.PullRemainder()
		if err != nil {
			return nil, err
		}
		if ok {
			// Short remainder frame: attach pts = sample_offset, do not
			// advance sample_offset further (spec.md §9 open question 1).
			remainder.PTS = p.sampleOffset
			if err := p.encoder.Send(remainder); err != nil {
				return nil, err
			}
			pkts, err := p.drainEncoder()
			if err != nil {
				return nil, err
			}
			out = append(out, pkts...)
		}
		p.Flushing = ResamplerDrained
	}

	if err := p.encoder.Send(model.Frame{}); err != nil {
		return nil, err
	}
	for {
		pkt, status, err := p.encoder.Recv()
		if err != nil {
			return nil, err
		}
		if status == codec.Drained {
			break
		}
		if status == codec.NeedMore {
			continue
		}
		out = append(out, p.mapper.Finalise(pkt))
	}
	p.Flushing = EncoderDrained
	p.Flushing = Done

	return out, nil
}

func (p *StreamPipeline) Close() {
	if p.decoder != nil {
		p.decoder.Close()
	}
	if p.resampler != nil {
		p.resampler.Close()
	}
	if p.scaler != nil {
		p.scaler.Close()
	}
	if p.encoder != nil {
		p.encoder.Close()
	}
}
