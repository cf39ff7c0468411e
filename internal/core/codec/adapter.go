// Package codec defines the CodecAdapter contract: the primitive operations
// a demuxer/decoder/encoder/resampler/muxer must expose for the transcode
// core (internal/core/pipeline, internal/core/scheduler) to drive them.
//
// This package intentionally contains no libavcodec/libavformat binding. The
// contract is the deliverable; internal/core/codec/ffmpegproc is one
// concrete realisation of it, built on the ffmpeg/ffprobe command line
// rather than cgo, and any conformant implementation (a cgo binding, a
// hardware vendor SDK) can be substituted behind these interfaces without
// touching the core.
package codec

import (
	"context"

	"github.com/mantonx/transcodecore/internal/core/model"
)

// Logger is the narrow logging surface the codec layer depends on, so a
// CodecAdapter implementation never has to import a concrete logging
// library. internal/core/logging adapts hclog.Logger to this interface.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

// Reader opens an input container and demuxes it into per-stream compressed
// packets. One Reader is opened per job input.
type Reader interface {
	// Streams reports every stream found in the container.
	Streams(ctx context.Context) ([]model.StreamDescriptor, *model.Error)
	// BestStream picks the stream Reader itself would choose for kind, used
	// by JobConfigResolver when the caller didn't pin a stream index.
	BestStream(kind model.Kind) (int, bool)
	// ReadPacket returns the next demuxed packet from any stream, or
	// (model.Packet{}, false, nil) at end of input.
	ReadPacket(ctx context.Context) (model.Packet, bool, *model.Error)
	Close() error
}

// Writer muxes encoded packets from one or more streams into the output
// container. One Writer is opened per job output.
type Writer interface {
	// AddStream declares an output stream and returns the muxer-assigned
	// time base, which may differ from the one the encoder requested —
	// TimestampMapper rescales every packet written to this stream against
	// the time base returned here, never against the encoder's.
	AddStream(kind model.Kind, codecName string, encoderTimeBase model.Rational) (streamIndex int, muxerTimeBase model.Rational, err *model.Error)
	// WriteHeader must be called once, after every AddStream call and
	// before the first WritePacket.
	WriteHeader() *model.Error
	// WritePacket writes one packet, already rescaled to this stream's
	// muxer time base, to the given output stream index.
	WritePacket(streamIndex int, pkt model.Packet) *model.Error
	// WriteTrailer finalises the container. Idempotent.
	WriteTrailer() *model.Error
	Close() error
}

// NeedStatus is the three-way result of a push/pull step on a streaming
// codec primitive (decoder, encoder, resampler): more input is needed
// before output is available, output is available now, or the primitive
// has produced its last output and is drained.
type NeedStatus int

const (
	NeedMore NeedStatus = iota
	HaveOutput
	Drained
)

// Decoder turns compressed packets from one stream into raw frames. Send
// and Recv are split so a decoder that buffers internally (B-frame
// reordering) can be driven with the same push/pull loop as one that
// doesn't: callers always alternate Send then Recv-until-NeedMore.
type Decoder interface {
	// Send pushes one packet, or a nil Data packet ("Null") to signal end of
	// stream and begin the decoder's internal flush.
	Send(pkt model.Packet) *model.Error
	// Recv returns the next decoded frame if one is ready.
	Recv() (model.Frame, NeedStatus, *model.Error)
	Close() error
}

// Encoder turns raw frames into compressed packets for one stream.
type Encoder interface {
	// Send pushes one frame, or a zero-value Frame ("Null") to signal end of
	// stream and begin the encoder's internal flush.
	Send(frame model.Frame) *model.Error
	// Recv returns the next encoded packet if one is ready, in the
	// encoder's own time base (TimestampMapper rescales it before it
	// reaches Writer.WritePacket).
	Recv() (model.Packet, NeedStatus, *model.Error)
	// RequiredFrameSamples returns the fixed sample count this encoder
	// requires per audio frame (e.g. 1024 for AAC), or 0 for video encoders
	// and for audio encoders that accept variable-length frames.
	RequiredFrameSamples() int
	Close() error
}

// Resampler converts audio frames between sample rate/channel
// layout/sample format. Unlike Decoder/Encoder it exposes an explicit
// "exact N samples" pull because encoders generally require fixed-size
// input frames, while the resampler's internal buffer rarely aligns to
// that size.
type Resampler interface {
	Push(frame model.Frame) *model.Error
	// PullExact returns a frame of exactly n samples, or NeedMore if fewer
	// than n are buffered and end of stream has not been signalled.
	PullExact(n int) (model.Frame, NeedStatus, *model.Error)
	// PullRemainder returns whatever partial frame is left after Push(Null)
	// has been called and PullExact has drained every full frame. The
	// caller decides whether to encode this short frame or discard it.
	PullRemainder() (model.Frame, bool, *model.Error)
	Close() error
}

// Scaler converts video frames between resolution/pixel format. It is
// stateless across calls in the sense that every call is a complete
// conversion of one frame; unlike Resampler there is no partial-frame
// remainder to manage.
type Scaler interface {
	Scale(frame model.Frame, width, height int, pixFmt string) (model.Frame, *model.Error)
	Close() error
}

// CodecAdapter is the factory surface JobRunner depends on to open the
// primitives above for one job, plus the adapter's static capability
// table consulted by JobConfigResolver.
type CodecAdapter interface {
	OpenReader(ctx context.Context, path string) (Reader, *model.Error)
	OpenWriter(ctx context.Context, path string, container model.Container) (Writer, *model.Error)
	OpenDecoder(ctx context.Context, stream model.StreamDescriptor) (Decoder, *model.Error)
	OpenEncoder(ctx context.Context, params model.EncoderParams, stream model.StreamDescriptor) (Encoder, *model.Error)
	OpenResampler(ctx context.Context, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (Resampler, *model.Error)
	OpenScaler(ctx context.Context) (Scaler, *model.Error)

	Capabilities() Capabilities
}
