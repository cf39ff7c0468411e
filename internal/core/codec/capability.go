package codec

import "github.com/mantonx/transcodecore/internal/core/model"

// Capabilities is the static table JobConfigResolver consults to validate a
// JobConfig before opening any codec resource: which containers this
// adapter can write, which encoders it can drive, the encoders' preferred
// default parameters, and — per encoder — which pixel formats, sample
// rates and channel layouts (channel counts) it accepts. A codec with no
// entry in PixelFormats/SampleRates/ChannelLayouts is treated as
// unconstrained on that axis, since not every adapter knows or cares to
// restrict it.
type Capabilities struct {
	Containers    []model.Container
	VideoEncoders []string
	AudioEncoders []string
	DefaultPreset map[string]string // encoder name -> default preset

	PixelFormats   map[string][]string // video encoder name -> supported pixel formats
	SampleRates    map[string][]int    // audio encoder name -> supported sample rates (Hz)
	ChannelLayouts map[string][]int    // audio encoder name -> supported channel counts
}

func (c Capabilities) SupportsContainer(container model.Container) bool {
	for _, ctn := range c.Containers {
		if ctn == container {
			return true
		}
	}
	return false
}

func (c Capabilities) SupportsVideoEncoder(name string) bool {
	return contains(c.VideoEncoders, name)
}

func (c Capabilities) SupportsAudioEncoder(name string) bool {
	return contains(c.AudioEncoders, name)
}

// SupportsPixelFormat reports whether codec accepts pixFmt. A codec absent
// from PixelFormats, or present with an empty list, is unconstrained.
func (c Capabilities) SupportsPixelFormat(codec, pixFmt string) bool {
	formats, ok := c.PixelFormats[codec]
	if !ok || len(formats) == 0 {
		return true
	}
	return contains(formats, pixFmt)
}

// SupportsSampleRate reports whether codec accepts sampleRate. A codec
// absent from SampleRates, or present with an empty list, is unconstrained.
func (c Capabilities) SupportsSampleRate(codec string, sampleRate int) bool {
	rates, ok := c.SampleRates[codec]
	if !ok || len(rates) == 0 {
		return true
	}
	for _, r := range rates {
		if r == sampleRate {
			return true
		}
	}
	return false
}

// SupportsChannelLayout reports whether codec accepts a channel count of
// channels. A codec absent from ChannelLayouts, or present with an empty
// list, is unconstrained.
func (c Capabilities) SupportsChannelLayout(codec string, channels int) bool {
	layouts, ok := c.ChannelLayouts[codec]
	if !ok || len(layouts) == 0 {
		return true
	}
	for _, l := range layouts {
		if l == channels {
			return true
		}
	}
	return false
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
