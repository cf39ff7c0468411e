package ffmpegproc

import (
	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// decoder buffers the raw bytes Reader already produced (demux and decode
// are one ffmpeg stage in this adapter, see package doc) and slices them
// into fixed-size Frames. It never spawns a process of its own.
type decoder struct {
	stream    model.StreamDescriptor
	frameSize int // bytes per frame; for audio this is one "chunk", not codec-fixed
	buf       []byte
	eof       bool
	framesOut int64
}

func newDecoder(stream model.StreamDescriptor) *decoder {
	d := &decoder{stream: stream}
	if stream.Kind == model.KindVideo {
		d.frameSize = bytesPerVideoFrame(stream.Width, stream.Height, stream.PixFmt)
	} else {
		samplesPerChunk := stream.SampleRate / 50
		if samplesPerChunk <= 0 {
			samplesPerChunk = 1024
		}
		d.frameSize = samplesPerChunk * stream.Channels * 4
	}
	if d.frameSize <= 0 {
		d.frameSize = 1
	}
	return d
}

func bytesPerVideoFrame(w, h int, pixFmt string) int {
	bitsPerPixel := 12 // yuv420p default
	switch pixFmt {
	case "yuv422p":
		bitsPerPixel = 16
	case "yuv444p", "rgb24", "bgr24":
		bitsPerPixel = 24
	}
	return w * h * bitsPerPixel / 8
}

func (d *decoder) Send(pkt model.Packet) *model.Error {
	if pkt.Data == nil {
		d.eof = true
		return nil
	}
	d.buf = append(d.buf, pkt.Data...)
	return nil
}

func (d *decoder) Recv() (model.Frame, codec.NeedStatus, *model.Error) {
	if len(d.buf) >= d.frameSize {
		chunk := d.buf[:d.frameSize]
		d.buf = d.buf[d.frameSize:]
		d.framesOut++
		return d.toFrame(chunk), codec.HaveOutput, nil
	}
	if d.eof {
		if len(d.buf) > 0 {
			chunk := d.buf
			d.buf = nil
			d.framesOut++
			return d.toFrame(chunk), codec.HaveOutput, nil
		}
		return model.Frame{}, codec.Drained, nil
	}
	return model.Frame{}, codec.NeedMore, nil
}

func (d *decoder) toFrame(data []byte) model.Frame {
	f := model.Frame{Kind: d.stream.Kind, Data: data, PTS: d.framesOut}
	if d.stream.Kind == model.KindVideo {
		f.Width = d.stream.Width
		f.Height = d.stream.Height
		f.PixFmt = d.stream.PixFmt
		if f.PixFmt == "" {
			f.PixFmt = "yuv420p"
		}
		f.TimeBase = d.stream.FrameRate
		if f.TimeBase.Den != 0 {
			f.TimeBase = model.Rational{Num: f.TimeBase.Den, Den: f.TimeBase.Num}
		}
	} else {
		f.SampleRate = d.stream.SampleRate
		f.Channels = d.stream.Channels
		f.SampleFmt = "f32le"
		if f.Channels > 0 {
			f.NumSamples = len(data) / (4 * f.Channels)
		}
		f.TimeBase = model.SampleRateBase(d.stream.SampleRate)
	}
	return f
}

func (d *decoder) Close() error { return nil }
