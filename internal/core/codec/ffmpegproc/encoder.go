package ffmpegproc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// encoder drives a long-lived ffmpeg subprocess fed raw frames on stdin
// and emitting compressed packets as an MPEG-TS elementary stream on
// stdout, so encoded output carries real PTS/DTS the way a genuine
// encoder's bitstream would. Packets are reassembled from the TS stream by
// tsdemux.go and handed back in 90kHz ticks; pipeline.TimestampMapper
// rescales them before they reach a Writer.
type encoder struct {
	stream model.StreamDescriptor
	params model.EncoderParams

	proc    Process
	outCh   chan tsChunk
	closed  bool
}

type tsChunk struct {
	unit tsUnit
	err  error
}

func newEncoder(ctx context.Context, runner CommandRunner, params model.EncoderParams, stream model.StreamDescriptor) (*encoder, error) {
	args := buildEncoderArgs(params, stream)
	proc, err := runner.Start(ctx, ffmpegPath(), args)
	if err != nil {
		return nil, err
	}
	e := &encoder{stream: stream, params: params, proc: proc, outCh: make(chan tsChunk, 32)}
	go e.demux()
	return e, nil
}

func buildEncoderArgs(params model.EncoderParams, stream model.StreamDescriptor) []string {
	args := []string{"-v", "error"}
	if stream.Kind == model.KindVideo {
		pixFmt := stream.PixFmt
		if pixFmt == "" {
			pixFmt = "yuv420p"
		}
		frameRate := stream.FrameRate
		args = append(args,
			"-f", "rawvideo", "-pix_fmt", pixFmt,
			"-s", fmt.Sprintf("%dx%d", stream.Width, stream.Height),
			"-r", fmt.Sprintf("%d/%d", frameRate.Num, max1(frameRate.Den)),
			"-i", "pipe:0",
			"-c:v", params.Codec,
		)
		switch params.RateControl {
		case model.RateControlCRF:
			args = append(args, "-crf", strconv.Itoa(params.CRF))
		case model.RateControlBitrate:
			args = append(args, "-b:v", fmt.Sprintf("%dk", params.BitrateKbps))
		}
		if params.Preset != "" {
			args = append(args, "-preset", params.Preset)
		}
		if params.Profile != "" {
			args = append(args, "-profile:v", params.Profile)
		}
	} else {
		args = append(args,
			"-f", "f32le", "-ar", strconv.Itoa(stream.SampleRate), "-ac", strconv.Itoa(stream.Channels),
			"-i", "pipe:0",
			"-c:a", params.Codec,
		)
		if params.RateControl == model.RateControlBitrate {
			args = append(args, "-b:a", fmt.Sprintf("%dk", params.BitrateKbps))
		}
	}
	for k, v := range params.ExtraOpts {
		args = append(args, "-"+k, v)
	}
	args = append(args, "-f", "mpegts", "pipe:1")
	return args
}

func max1(v int64) int64 {
	if v <= 0 {
		return 1
	}
	return v
}

func (e *encoder) demux() {
	dm := newTSDemuxer(e.proc.Stdout())
	for {
		u, err := dm.Next()
		if err != nil {
			e.outCh <- tsChunk{err: err}
			close(e.outCh)
			return
		}
		e.outCh <- tsChunk{unit: u}
	}
}

func (e *encoder) Send(frame model.Frame) *model.Error {
	if frame.Data == nil {
		if !e.closed {
			e.closed = true
			e.proc.Stdin().Close()
		}
		return nil
	}
	if _, err := e.proc.Stdin().Write(frame.Data); err != nil {
		return model.CodecError("encoder", "write to ffmpeg stdin failed", err)
	}
	return nil
}

func (e *encoder) Recv() (model.Packet, codec.NeedStatus, *model.Error) {
	select {
	case c, ok := <-e.outCh:
		if !ok {
			return model.Packet{}, codec.Drained, nil
		}
		if c.err != nil {
			return model.Packet{}, codec.Drained, nil
		}
		kind := e.stream.Kind
		pkt := model.Packet{
			Kind:     kind,
			Data:     c.unit.Payload,
			PTS:      model.PTSUnset,
			DTS:      model.PTSUnset,
			TimeBase: model.Rational{Num: 1, Den: 90000},
		}
		if c.unit.PTS >= 0 {
			pkt.PTS = c.unit.PTS
		}
		if c.unit.DTS >= 0 {
			pkt.DTS = c.unit.DTS
		} else {
			pkt.DTS = pkt.PTS
		}
		return pkt, codec.HaveOutput, nil
	default:
		return model.Packet{}, codec.NeedMore, nil
	}
}

func (e *encoder) Close() error {
	if e.proc == nil {
		return nil
	}
	return e.proc.Kill()
}

// requiredFrameSamplesByCodec is the fixed audio frame size real encoders
// impose; ffmpeg's CLI hides this from us (it pads internally), so this
// reference adapter declares the well-known values explicitly rather than
// discovering them, matching what an encoder-side Encoder.required_frame_
// samples() query would return.
var requiredFrameSamplesByCodec = map[string]int{
	"aac":         1024,
	"libmp3lame":  1152,
	"mp3":         1152,
}

func (e *encoder) RequiredFrameSamples() int {
	if e.stream.Kind != model.KindAudio {
		return 0
	}
	return requiredFrameSamplesByCodec[e.params.Codec]
}
