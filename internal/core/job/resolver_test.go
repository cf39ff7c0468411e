package job

import (
	"testing"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaps() codec.Capabilities {
	return codec.Capabilities{
		Containers:    []model.Container{model.ContainerMP4},
		VideoEncoders: []string{"libx264"},
		AudioEncoders: []string{"aac"},
		ChannelLayouts: map[string][]int{
			"aac": {1, 2, 6},
		},
	}
}

func testStreams() []model.StreamDescriptor {
	return []model.StreamDescriptor{
		{Index: 0, Kind: model.KindVideo, Width: 1920, Height: 1080, PixFmt: "yuv420p", FrameRate: model.Rational{Num: 30, Den: 1}},
		{Index: 1, Kind: model.KindAudio, SampleRate: 48000, Channels: 2, SampleFmt: "fltp"},
	}
}

func baseConfig() model.JobConfig {
	return model.JobConfig{
		InputPath: "in.mp4", OutputPath: "out.mp4", Container: model.ContainerMP4,
		Video: model.VideoConfig{
			Enabled: true, Width: model.KeepSource, Height: model.KeepSource,
			Encoder: model.EncoderParams{Codec: "libx264", RateControl: model.RateControlCRF, CRF: 23},
		},
		Audio: model.AudioConfig{
			Enabled: true, SampleRate: model.KeepSource, Channels: model.KeepSource,
			Encoder: model.EncoderParams{Codec: "aac", RateControl: model.RateControlBitrate, BitrateKbps: 128},
		},
	}
}

func TestResolver_KeepSourceFieldsResolveFromDescriptor(t *testing.T) {
	r := NewResolver(testCaps())
	resolved, err := r.Resolve(baseConfig(), testStreams())
	require.Nil(t, err)
	assert.Equal(t, 1920, resolved.Video.Width)
	assert.Equal(t, 1080, resolved.Video.Height)
	assert.Equal(t, 48000, resolved.Audio.SampleRate)
	assert.Equal(t, 2, resolved.Audio.Channels)
	assert.Equal(t, 0, resolved.VideoStreamIndex)
	assert.Equal(t, 1, resolved.AudioStreamIndex)
}

func TestResolver_Idempotent(t *testing.T) {
	r := NewResolver(testCaps())
	cfg := baseConfig()
	first, err := r.Resolve(cfg, testStreams())
	require.Nil(t, err)

	// Re-resolving the same JobConfig against the same descriptors must
	// produce an identical ResolvedConfig (spec.md §8 property 4).
	second, err := r.Resolve(cfg, testStreams())
	require.Nil(t, err)
	assert.Equal(t, first, second)
}

func TestResolver_RejectsUnsupportedEncoder(t *testing.T) {
	r := NewResolver(testCaps())
	cfg := baseConfig()
	cfg.Video.Encoder.Codec = "libx265"

	_, err := r.Resolve(cfg, testStreams())
	require.NotNil(t, err)
	assert.Equal(t, model.ErrKindConfig, err.Kind)
}

func TestResolver_RejectsUnsupportedContainer(t *testing.T) {
	r := NewResolver(testCaps())
	cfg := baseConfig()
	cfg.Container = model.ContainerMKV

	_, err := r.Resolve(cfg, testStreams())
	require.NotNil(t, err)
}

func TestResolver_RejectsUnsupportedChannelLayout(t *testing.T) {
	r := NewResolver(testCaps())
	cfg := baseConfig()
	cfg.Audio.Channels = 4 // not in aac's {1, 2, 6}

	streams := testStreams()
	streams[1].Channels = 4

	_, err := r.Resolve(cfg, streams)
	require.NotNil(t, err)
	assert.Equal(t, model.ErrKindConfig, err.Kind)
	assert.Equal(t, "UNSUPPORTED_COMBINATION", err.Code)
}

func TestResolver_FailsWhenNoMatchingStream(t *testing.T) {
	r := NewResolver(testCaps())
	cfg := baseConfig()

	_, err := r.Resolve(cfg, []model.StreamDescriptor{testStreams()[1]})
	require.NotNil(t, err)
	assert.Equal(t, model.ErrKindConfig, err.Kind)
}
