package ffmpegproc

import (
	"context"
	"fmt"
	"os"

	"github.com/mantonx/transcodecore/internal/core/model"
)

// writer remuxes the elementary bitstreams produced by each encoder into
// the final output container. AddStream only records the declaration;
// ffmpeg needs every "-i" up front, so the actual process is spawned by
// WriteHeader once every stream is known, with one ExtraFiles pipe per
// stream carrying that stream's raw encoded bytes straight through with
// "-c copy".
type writer struct {
	ctx       context.Context
	runner    CommandRunner
	path      string
	container model.Container

	declared []streamDecl
	pipes    []*os.File
	proc     Process
	started  bool
}

type streamDecl struct {
	kind      model.Kind
	codecName string
	timeBase  model.Rational
}

func newWriter(ctx context.Context, runner CommandRunner, path string, container model.Container) *writer {
	return &writer{ctx: ctx, runner: runner, path: path, container: container}
}

func (w *writer) AddStream(kind model.Kind, codecName string, encoderTimeBase model.Rational) (int, model.Rational, *model.Error) {
	idx := len(w.declared)
	w.declared = append(w.declared, streamDecl{kind: kind, codecName: codecName, timeBase: encoderTimeBase})
	// The reference adapter's remux stage always assigns a 90kHz muxer time
	// base, the MPEG-TS convention, regardless of what the encoder asked
	// for; TimestampMapper is responsible for rescaling to this value.
	return idx, model.Rational{Num: 1, Den: 90000}, nil
}

func (w *writer) WriteHeader() *model.Error {
	if w.started {
		return nil
	}
	w.started = true

	args := []string{"-v", "error"}
	childEnds := make([]*os.File, 0, len(w.declared))
	for i, d := range w.declared {
		rd, wr, err := os.Pipe()
		if err != nil {
			return model.InternalError("writer", "pipe creation failed", err)
		}
		w.pipes = append(w.pipes, wr)
		childEnds = append(childEnds, rd)
		fd := 2 + i + 1
		args = append(args, "-f", elementaryFormat(d.codecName), "-i", fmt.Sprintf("pipe:%d", fd))
	}
	for i, d := range w.declared {
		streamSel := fmt.Sprintf("%d:0", i)
		if d.kind == model.KindVideo {
			args = append(args, "-map", streamSel, "-c:v", "copy")
		} else {
			args = append(args, "-map", streamSel, "-c:a", "copy")
		}
	}
	args = append(args, "-f", muxerName(w.container), w.path)

	proc, err := startWithExtraFiles(w.ctx, ffmpegPath(), args, childEnds)
	if err != nil {
		return model.InternalError("writer", "failed to start ffmpeg mux", err)
	}
	w.proc = proc
	return nil
}

func (w *writer) WritePacket(streamIndex int, pkt model.Packet) *model.Error {
	if streamIndex < 0 || streamIndex >= len(w.pipes) {
		return model.InternalError("writer", fmt.Sprintf("unknown output stream %d", streamIndex), nil)
	}
	if _, err := w.pipes[streamIndex].Write(pkt.Data); err != nil {
		return model.OutputError("writer", "write to muxer pipe failed", err)
	}
	return nil
}

func (w *writer) WriteTrailer() *model.Error {
	for _, p := range w.pipes {
		p.Close()
	}
	if w.proc != nil {
		if err := w.proc.Wait(); err != nil {
			return model.OutputError("writer", "ffmpeg mux process failed", err)
		}
	}
	return nil
}

func (w *writer) Close() error {
	for _, p := range w.pipes {
		p.Close()
	}
	if w.proc != nil {
		return w.proc.Kill()
	}
	return nil
}

func elementaryFormat(codecName string) string {
	switch codecName {
	case "libx264", "h264":
		return "h264"
	case "libx265", "hevc", "h265":
		return "hevc"
	case "aac":
		return "aac"
	case "libmp3lame", "mp3":
		return "mp3"
	default:
		return "data"
	}
}

func muxerName(c model.Container) string {
	switch c {
	case model.ContainerMP4:
		return "mp4"
	case model.ContainerMKV:
		return "matroska"
	case model.ContainerWebM:
		return "webm"
	default:
		return string(c)
	}
}
