package model

import "fmt"

// RateControl selects how EncoderParams.Bitrate/CRF is interpreted.
type RateControl string

const (
	RateControlCRF     RateControl = "crf"
	RateControlBitrate RateControl = "bitrate"
)

// EncoderParams is a tagged union over the handful of encoder knobs the
// spec exposes. Codec is always required; the rest apply per RateControl.
// Using one struct instead of a Go sum type (there is no such thing) keeps
// JobConfigResolver's defaulting logic in one place instead of scattered
// across per-codec structs.
type EncoderParams struct {
	Codec       string
	RateControl RateControl
	CRF         int   // used when RateControl == RateControlCRF
	BitrateKbps int   // used when RateControl == RateControlBitrate
	Preset      string // encoder speed/quality preset name, codec-specific
	Profile     string // codec profile, e.g. "high", "main"
	ExtraOpts   map[string]string
}

func (p EncoderParams) Validate() *Error {
	if p.Codec == "" {
		return ConfigError("resolver", "encoder params missing codec", nil)
	}
	switch p.RateControl {
	case RateControlCRF:
		if p.CRF < 0 {
			return ConfigError("resolver", fmt.Sprintf("invalid crf %d", p.CRF), nil)
		}
	case RateControlBitrate:
		if p.BitrateKbps <= 0 {
			return ConfigError("resolver", fmt.Sprintf("invalid bitrate %d", p.BitrateKbps), nil)
		}
	default:
		return ConfigError("resolver", "encoder params missing rate control mode", nil)
	}
	return nil
}

// VideoConfig is the user-facing (pre-resolution) video policy. Width,
// Height and PixFmt may be KeepSource; JobConfigResolver turns them into
// concrete values once the input's StreamDescriptor is known.
type VideoConfig struct {
	Enabled   bool
	Width     int // pixels, or KeepSource
	Height    int // pixels, or KeepSource
	PixFmt    string // "" means KeepSource
	FrameRate Rational // zero value means KeepSource
	Encoder   EncoderParams
}

// AudioConfig is the user-facing (pre-resolution) audio policy. SampleRate
// and Channels may be KeepSource.
type AudioConfig struct {
	Enabled    bool
	SampleRate int // Hz, or KeepSource
	Channels   int // or KeepSource
	SampleFmt  string
	Encoder    EncoderParams
}

// Container selects the output muxer.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerMKV  Container = "mkv"
	ContainerWebM Container = "webm"
)

// JobConfig is the full, user-supplied transcode request for one input/
// output pair. It is immutable once submitted; JobConfigResolver derives a
// ResolvedConfig from it without mutating the original.
type JobConfig struct {
	InputPath  string
	OutputPath string
	Container  Container
	Video      VideoConfig
	Audio      AudioConfig

	// ThreadHint, when 0, asks JobConfigResolver to fill in a default from
	// sysinfo rather than leaving the codec adapter to guess.
	ThreadHint int
}

// Validate runs the checks that don't require the input file to be probed:
// paths present, container recognised, at least one of audio/video enabled.
func (c JobConfig) Validate() *Error {
	if c.InputPath == "" {
		return ConfigError("resolver", "input_path is required", nil)
	}
	if c.OutputPath == "" {
		return ConfigError("resolver", "output_path is required", nil)
	}
	switch c.Container {
	case ContainerMP4, ContainerMKV, ContainerWebM:
	default:
		return ConfigError("resolver", fmt.Sprintf("unsupported container %q", c.Container), nil)
	}
	if !c.Video.Enabled && !c.Audio.Enabled {
		return ConfigError("resolver", "job must enable at least one of video or audio", nil)
	}
	return nil
}

// ResolvedConfig is the output of JobConfigResolver: every KeepSource field
// replaced with a concrete value drawn from the probed input, every
// EncoderParams validated, ready to hand to StreamPipeline.
type ResolvedConfig struct {
	InputPath  string
	OutputPath string
	Container  Container

	VideoStreamIndex int // -1 if video disabled
	Video            ResolvedVideo

	AudioStreamIndex int // -1 if audio disabled
	Audio            ResolvedAudio

	ThreadHint int
}

type ResolvedVideo struct {
	Width     int
	Height    int
	PixFmt    string
	FrameRate Rational
	Encoder   EncoderParams
}

type ResolvedAudio struct {
	SampleRate int
	Channels   int
	SampleFmt  string
	Encoder    EncoderParams
}
