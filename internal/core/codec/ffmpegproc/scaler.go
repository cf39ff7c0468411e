package ffmpegproc

import (
	"context"
	"fmt"

	"github.com/mantonx/transcodecore/internal/core/model"
)

// scaler converts one video frame at a time by round-tripping it through a
// short-lived ffmpeg process per call. This is the simplest correct
// construction of the codec.Scaler contract on top of the ffmpeg CLI; a
// throughput-sensitive adapter would instead keep a single scale filter
// process alive across frames the way encoder.go and resampler.go do.
type scaler struct {
	ctx    context.Context
	runner CommandRunner
}

func newScaler(ctx context.Context, runner CommandRunner) *scaler {
	return &scaler{ctx: ctx, runner: runner}
}

func (s *scaler) Scale(frame model.Frame, width, height int, pixFmt string) (model.Frame, *model.Error) {
	if pixFmt == "" {
		pixFmt = frame.PixFmt
	}
	if width == frame.Width && height == frame.Height && pixFmt == frame.PixFmt {
		return frame, nil
	}
	args := []string{
		"-v", "error",
		"-f", "rawvideo", "-pix_fmt", frame.PixFmt, "-s", fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		"-i", "pipe:0",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", pixFmt,
		"-f", "rawvideo", "pipe:1",
	}
	proc, err := s.runner.Start(s.ctx, ffmpegPath(), args)
	if err != nil {
		return model.Frame{}, model.CodecError("scaler", "failed to start ffmpeg scale filter", err)
	}
	defer proc.Kill()

	go func() {
		proc.Stdin().Write(frame.Data)
		proc.Stdin().Close()
	}()

	out := make([]byte, bytesPerVideoFrame(width, height, pixFmt))
	total := 0
	for total < len(out) {
		n, rerr := proc.Stdout().Read(out[total:])
		total += n
		if rerr != nil {
			break
		}
	}
	return model.Frame{
		Kind: model.KindVideo, Data: out[:total], Width: width, Height: height, PixFmt: pixFmt,
		PTS: frame.PTS, TimeBase: frame.TimeBase,
	}, nil
}

func (s *scaler) Close() error { return nil }
