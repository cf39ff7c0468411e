package model

// Kind distinguishes the two media kinds the scheduler interleaves.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// KeepSource is the sentinel value used across VideoConfig/AudioConfig for
// integer fields whose meaning is "pass the source's value through
// unchanged": width, height, sample rate, channel count. Pixel format and
// frame rate are not integers; they use their zero values ("" and
// Rational{}) for the same meaning.
const KeepSource = -1

// StreamDescriptor is what Reader.Streams() reports for one stream of the
// input container: enough for JobConfigResolver to decide what a "keep
// source" field resolves to, and enough for TimestampMapper to know the
// stream's native time base.
type StreamDescriptor struct {
	Index      int
	Kind       Kind
	CodecName  string
	TimeBase   Rational
	Duration   int64 // in TimeBase ticks, 0 if unknown
	BitRate    int64 // bits/sec, 0 if unknown

	// Video fields, zero for audio streams.
	Width   int
	Height  int
	PixFmt  string
	FrameRate Rational

	// Audio fields, zero for video streams.
	SampleRate int
	Channels   int
	SampleFmt  string
}

// BestStreamSelector picks a stream index from a slice of StreamDescriptor,
// mirroring Reader.BestStream(kind): highest bitrate video stream, or
// highest channel-count audio stream, with the lowest index breaking ties.
func BestStreamSelector(streams []StreamDescriptor, kind Kind) (int, bool) {
	best := -1
	bestScore := int64(-1)
	for _, s := range streams {
		if s.Kind != kind {
			continue
		}
		score := s.BitRate
		if kind == KindAudio {
			score = int64(s.Channels)*1_000_000 + s.BitRate
		}
		if score > bestScore || best == -1 {
			best = s.Index
			bestScore = score
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
