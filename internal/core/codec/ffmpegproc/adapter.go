package ffmpegproc

import (
	"context"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// Adapter implements codec.CodecAdapter on top of the ffmpeg/ffprobe
// command-line tools. See the package doc comment for the simplifications
// this reference implementation makes.
type Adapter struct {
	runner CommandRunner
	caps   codec.Capabilities
	log    codec.Logger
}

// New returns an Adapter using the real ffmpeg/ffprobe binaries on PATH
// (or FFMPEG_PATH/FFPROBE_PATH if set).
func New(log codec.Logger) *Adapter {
	return NewWithRunner(DefaultCommandRunner{}, log)
}

// NewWithRunner allows tests to substitute a fake CommandRunner.
func NewWithRunner(runner CommandRunner, log codec.Logger) *Adapter {
	return &Adapter{
		runner: runner,
		log:    log,
		caps: codec.Capabilities{
			Containers:    []model.Container{model.ContainerMP4, model.ContainerMKV, model.ContainerWebM},
			VideoEncoders: []string{"libx264", "libx265"},
			AudioEncoders: []string{"aac", "libmp3lame"},
			DefaultPreset: map[string]string{"libx264": "medium", "libx265": "medium"},
			PixelFormats: map[string][]string{
				"libx264": {"yuv420p", "yuv422p", "yuv444p"},
				"libx265": {"yuv420p", "yuv420p10le"},
			},
			SampleRates: map[string][]int{
				"aac":        {44100, 48000},
				"libmp3lame": {32000, 44100, 48000},
			},
			ChannelLayouts: map[string][]int{
				"aac":        {1, 2, 6},
				"libmp3lame": {1, 2},
			},
		},
	}
}

func (a *Adapter) OpenReader(ctx context.Context, path string) (codec.Reader, *model.Error) {
	r, err := newReader(ctx, a.runner, path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (a *Adapter) OpenWriter(ctx context.Context, path string, container model.Container) (codec.Writer, *model.Error) {
	if !a.caps.SupportsContainer(container) {
		return nil, model.ConfigError("codec-adapter", "unsupported container "+string(container), nil)
	}
	return newWriter(ctx, a.runner, path, container), nil
}

func (a *Adapter) OpenDecoder(ctx context.Context, stream model.StreamDescriptor) (codec.Decoder, *model.Error) {
	return newDecoder(stream), nil
}

func (a *Adapter) OpenEncoder(ctx context.Context, params model.EncoderParams, stream model.StreamDescriptor) (codec.Encoder, *model.Error) {
	if stream.Kind == model.KindVideo && !a.caps.SupportsVideoEncoder(params.Codec) {
		return nil, model.ConfigError("codec-adapter", "unsupported video encoder "+params.Codec, nil)
	}
	if stream.Kind == model.KindAudio && !a.caps.SupportsAudioEncoder(params.Codec) {
		return nil, model.ConfigError("codec-adapter", "unsupported audio encoder "+params.Codec, nil)
	}
	enc, err := newEncoder(ctx, a.runner, params, stream)
	if err != nil {
		return nil, model.CodecError("codec-adapter", "failed to start encoder process", err)
	}
	return enc, nil
}

func (a *Adapter) OpenResampler(ctx context.Context, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (codec.Resampler, *model.Error) {
	rs, err := newResampler(ctx, a.runner, srcRate, dstRate, srcChannels, dstChannels, sampleFmt)
	if err != nil {
		return nil, model.CodecError("codec-adapter", "failed to start resampler process", err)
	}
	return rs, nil
}

func (a *Adapter) OpenScaler(ctx context.Context) (codec.Scaler, *model.Error) {
	return newScaler(ctx, a.runner), nil
}

func (a *Adapter) Capabilities() codec.Capabilities {
	return a.caps
}
