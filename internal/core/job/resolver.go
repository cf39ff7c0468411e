// Package job holds JobConfigResolver (validates and resolves a JobConfig
// against a probed input) and JobRunner (drives one job's scheduler to
// completion).
package job

import (
	"fmt"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/mantonx/transcodecore/internal/core/sysinfo"
)

// Resolver turns a user-supplied JobConfig plus the input's probed
// StreamDescriptors into a ResolvedConfig, replacing every KeepSource
// sentinel and validating against the adapter's capability table
// (spec.md §4.6).
type Resolver struct {
	caps codec.Capabilities
}

func NewResolver(caps codec.Capabilities) *Resolver {
	return &Resolver{caps: caps}
}

// Resolve is idempotent: resolving an already-resolved config's equivalent
// JobConfig against the same descriptors yields the same ResolvedConfig
// (spec.md §8 property 4), since every KeepSource replacement reads only
// from descriptors, never from a prior resolution's output.
func (r *Resolver) Resolve(cfg model.JobConfig, streams []model.StreamDescriptor) (model.ResolvedConfig, *model.Error) {
	if err := cfg.Validate(); err != nil {
		return model.ResolvedConfig{}, err
	}
	if !r.caps.SupportsContainer(cfg.Container) {
		return model.ResolvedConfig{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("container %s not supported", cfg.Container), nil)
	}

	out := model.ResolvedConfig{
		InputPath: cfg.InputPath, OutputPath: cfg.OutputPath, Container: cfg.Container,
		VideoStreamIndex: -1, AudioStreamIndex: -1,
		ThreadHint: cfg.ThreadHint,
	}
	if out.ThreadHint == 0 {
		out.ThreadHint = sysinfo.DefaultThreadHint()
	}

	if cfg.Video.Enabled {
		idx, videoDesc, err := pickStream(streams, model.KindVideo)
		if err != nil {
			return model.ResolvedConfig{}, err
		}
		resolvedVideo, err := r.resolveVideo(cfg.Video, videoDesc)
		if err != nil {
			return model.ResolvedConfig{}, err
		}
		out.VideoStreamIndex = idx
		out.Video = resolvedVideo
	}

	if cfg.Audio.Enabled {
		idx, audioDesc, err := pickStream(streams, model.KindAudio)
		if err != nil {
			return model.ResolvedConfig{}, err
		}
		resolvedAudio, err := r.resolveAudio(cfg.Audio, audioDesc)
		if err != nil {
			return model.ResolvedConfig{}, err
		}
		out.AudioStreamIndex = idx
		out.Audio = resolvedAudio
	}

	return out, nil
}

func pickStream(streams []model.StreamDescriptor, kind model.Kind) (int, model.StreamDescriptor, *model.Error) {
	idx, ok := model.BestStreamSelector(streams, kind)
	if !ok {
		return 0, model.StreamDescriptor{}, model.ConfigError("resolver", fmt.Sprintf("no %s stream in input", kind), nil)
	}
	for _, s := range streams {
		if s.Index == idx {
			return idx, s, nil
		}
	}
	return 0, model.StreamDescriptor{}, model.InternalError("resolver", "selected stream index not found in descriptor list", nil)
}

func (r *Resolver) resolveVideo(cfg model.VideoConfig, desc model.StreamDescriptor) (model.ResolvedVideo, *model.Error) {
	if !r.caps.SupportsVideoEncoder(cfg.Encoder.Codec) {
		return model.ResolvedVideo{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("codec %s not supported for video", cfg.Encoder.Codec), nil)
	}

	width, height := cfg.Width, cfg.Height
	if width == model.KeepSource {
		width = desc.Width
	}
	if height == model.KeepSource {
		height = desc.Height
	}
	pixFmt := cfg.PixFmt
	if pixFmt == "" {
		pixFmt = desc.PixFmt
	}
	frameRate := cfg.FrameRate
	if frameRate == (model.Rational{}) {
		frameRate = desc.FrameRate
	}

	if !r.caps.SupportsPixelFormat(cfg.Encoder.Codec, pixFmt) {
		return model.ResolvedVideo{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("pixel format %s not supported by codec %s", pixFmt, cfg.Encoder.Codec), nil)
	}

	params := cfg.Encoder
	if verr := params.Validate(); verr != nil {
		return model.ResolvedVideo{}, verr
	}

	return model.ResolvedVideo{Width: width, Height: height, PixFmt: pixFmt, FrameRate: frameRate, Encoder: params}, nil
}

func (r *Resolver) resolveAudio(cfg model.AudioConfig, desc model.StreamDescriptor) (model.ResolvedAudio, *model.Error) {
	if !r.caps.SupportsAudioEncoder(cfg.Encoder.Codec) {
		return model.ResolvedAudio{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("codec %s not supported for audio", cfg.Encoder.Codec), nil)
	}

	sampleRate := cfg.SampleRate
	if sampleRate == model.KeepSource {
		sampleRate = desc.SampleRate
	}
	channels := cfg.Channels
	if channels == model.KeepSource {
		channels = desc.Channels
	}
	sampleFmt := cfg.SampleFmt
	if sampleFmt == "" {
		sampleFmt = desc.SampleFmt
	}

	if !r.caps.SupportsSampleRate(cfg.Encoder.Codec, sampleRate) {
		return model.ResolvedAudio{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("sample rate %d not supported by codec %s", sampleRate, cfg.Encoder.Codec), nil)
	}
	if !r.caps.SupportsChannelLayout(cfg.Encoder.Codec, channels) {
		return model.ResolvedAudio{}, model.NewError(model.ErrKindConfig, "resolver", "UNSUPPORTED_COMBINATION",
			fmt.Sprintf("channel layout %d not supported by codec %s", channels, cfg.Encoder.Codec), nil)
	}

	params := cfg.Encoder
	if verr := params.Validate(); verr != nil {
		return model.ResolvedAudio{}, verr
	}

	return model.ResolvedAudio{SampleRate: sampleRate, Channels: channels, SampleFmt: sampleFmt, Encoder: params}, nil
}
