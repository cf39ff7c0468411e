package ffmpegproc

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mantonx/transcodecore/internal/core/model"
)

// probeResult mirrors the subset of `ffprobe -print_format json -show_streams
// -show_format` this adapter reads.
type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PixFmt        string `json:"pix_fmt"`
	SampleFmt     string `json:"sample_fmt"`
	SampleRateStr string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	RFrameRate    string `json:"r_frame_rate"`
	TimeBaseStr   string `json:"time_base"`
	BitRateStr    string `json:"bit_rate"`
	DurationStr   string `json:"duration"`
}

type probeFormat struct {
	DurationStr string `json:"duration"`
	BitRateStr  string `json:"bit_rate"`
}

func probe(ctx context.Context, runner CommandRunner, path string) (*probeResult, error) {
	out, err := runner.Output(ctx, ffprobePath(), []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	})
	if err != nil {
		return nil, err
	}
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func parseRational(s string) model.Rational {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return model.Rational{}
	}
	num, err1 := strconv.ParseInt(parts[0], 10, 64)
	den, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || den == 0 {
		return model.Rational{}
	}
	return model.NewRational(num, den)
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDurationTicks(s string, tb model.Rational) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || tb.Den == 0 {
		return 0
	}
	return int64(f * float64(tb.Den) / float64(tb.Num))
}

func (s probeStream) toDescriptor() model.StreamDescriptor {
	tb := parseRational(s.TimeBaseStr)
	desc := model.StreamDescriptor{
		Index:     s.Index,
		CodecName: s.CodecName,
		TimeBase:  tb,
		BitRate:   parseInt64(s.BitRateStr),
		Duration:  parseDurationTicks(s.DurationStr, tb),
	}
	switch s.CodecType {
	case "video":
		desc.Kind = model.KindVideo
		desc.Width = s.Width
		desc.Height = s.Height
		desc.PixFmt = s.PixFmt
		desc.FrameRate = parseRational(s.RFrameRate)
	case "audio":
		desc.Kind = model.KindAudio
		desc.SampleRate, _ = strconv.Atoi(s.SampleRateStr)
		desc.Channels = s.Channels
		desc.SampleFmt = s.SampleFmt
	}
	return desc
}
