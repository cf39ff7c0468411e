package ffmpegproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/mantonx/transcodecore/internal/core/model"
)

// reader demuxes (and, per this package's collapsed design, decodes) the
// input container's video and audio streams into raw-frame-sized Packets.
// It spawns one ffmpeg process that writes each selected stream's raw
// samples to its own pipe via os/exec's ExtraFiles, so two streams can be
// read concurrently without multiplexing a single byte stream.
type reader struct {
	ctx     context.Context
	runner  CommandRunner
	path    string
	streams []model.StreamDescriptor

	mu       sync.Mutex
	started  bool
	videoIdx int // -1 if no video stream
	audioIdx int // -1 if no audio stream

	videoCh chan frameChunk
	audioCh chan frameChunk
	proc    Process
}

type frameChunk struct {
	data []byte
	err  error
}

func newReader(ctx context.Context, runner CommandRunner, path string) (*reader, *model.Error) {
	res, err := probe(ctx, runner, path)
	if err != nil {
		return nil, model.InputError("reader", fmt.Sprintf("ffprobe failed for %s", path), err)
	}
	descs := make([]model.StreamDescriptor, 0, len(res.Streams))
	for _, s := range res.Streams {
		if s.CodecType != "video" && s.CodecType != "audio" {
			continue
		}
		descs = append(descs, s.toDescriptor())
	}
	if len(descs) == 0 {
		return nil, model.InputError("reader", fmt.Sprintf("no decodable streams in %s", path), nil)
	}
	r := &reader{ctx: ctx, runner: runner, path: path, streams: descs, videoIdx: -1, audioIdx: -1}
	if idx, ok := model.BestStreamSelector(descs, model.KindVideo); ok {
		r.videoIdx = idx
	}
	if idx, ok := model.BestStreamSelector(descs, model.KindAudio); ok {
		r.audioIdx = idx
	}
	return r, nil
}

func (r *reader) Streams(ctx context.Context) ([]model.StreamDescriptor, *model.Error) {
	return r.streams, nil
}

func (r *reader) BestStream(kind model.Kind) (int, bool) {
	switch kind {
	case model.KindVideo:
		return r.videoIdx, r.videoIdx >= 0
	case model.KindAudio:
		return r.audioIdx, r.audioIdx >= 0
	}
	return 0, false
}

func (r *reader) descriptor(index int) (model.StreamDescriptor, bool) {
	for _, s := range r.streams {
		if s.Index == index {
			return s, true
		}
	}
	return model.StreamDescriptor{}, false
}

// ensureStarted lazily launches the ffmpeg raw-export process the first
// time a packet is requested, wiring one ExtraFiles pipe per selected
// stream (fd 3 for the first selected stream, fd 4 for the second; video
// comes first, so audio is on fd 3 when there is no video stream).
func (r *reader) ensureStarted() *model.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true

	args := []string{"-v", "error", "-i", r.path}
	pipes := []*os.File{}
	var videoWrite, audioWrite *os.File

	if r.videoIdx >= 0 {
		desc, _ := r.descriptor(r.videoIdx)
		pixFmt := desc.PixFmt
		if pixFmt == "" {
			pixFmt = "yuv420p"
		}
		rd, wr, err := os.Pipe()
		if err != nil {
			return model.InternalError("reader", "pipe creation failed", err)
		}
		pipes = append(pipes, wr)
		videoWrite = wr
		fd := 2 + len(pipes)
		args = append(args, "-map", fmt.Sprintf("0:%d", r.videoIdx),
			"-f", "rawvideo", "-pix_fmt", pixFmt, fmt.Sprintf("pipe:%d", fd))
		r.videoCh = make(chan frameChunk, 8)
		go pumpPipe(rd, r.videoCh)
	}
	if r.audioIdx >= 0 {
		desc, _ := r.descriptor(r.audioIdx)
		rd, wr, err := os.Pipe()
		if err != nil {
			return model.InternalError("reader", "pipe creation failed", err)
		}
		pipes = append(pipes, wr)
		audioWrite = wr
		fd := 2 + len(pipes)
		args = append(args, "-map", fmt.Sprintf("0:%d", r.audioIdx),
			"-f", "f32le", "-ar", strconv.Itoa(desc.SampleRate), "-ac", strconv.Itoa(desc.Channels),
			fmt.Sprintf("pipe:%d", fd))
		r.audioCh = make(chan frameChunk, 8)
		go pumpPipe(rd, r.audioCh)
	}

	proc, err := startWithExtraFiles(r.ctx, ffmpegPath(), args, pipes)
	if err != nil {
		return model.InternalError("reader", "failed to start ffmpeg demux", err)
	}
	r.proc = proc
	_ = videoWrite
	_ = audioWrite
	return nil
}

func pumpPipe(f *os.File, out chan<- frameChunk) {
	defer f.Close()
	buf := make([]byte, 256*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			out <- frameChunk{data: chunk}
		}
		if err != nil {
			if err != io.EOF {
				out <- frameChunk{err: err}
			}
			close(out)
			return
		}
	}
}

// ReadPacket yields whichever selected stream has data ready first. Video
// and audio raw bytes are returned in frameChunk-sized pieces; callers
// relying on fixed-size video/audio frames (Decoder, in this package, is a
// pass-through) are responsible for buffering to a whole frame, which
// decoder.go does.
func (r *reader) ReadPacket(ctx context.Context) (model.Packet, bool, *model.Error) {
	if cerr := r.ensureStarted(); cerr != nil {
		return model.Packet{}, false, cerr
	}
	select {
	case c, ok := <-r.videoCh:
		if !ok {
			r.videoCh = nil
			return r.ReadPacket(ctx)
		}
		if c.err != nil {
			return model.Packet{}, false, model.InputError("reader", "video demux read failed", c.err)
		}
		return model.Packet{StreamIndex: r.videoIdx, Kind: model.KindVideo, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
	case c, ok := <-r.audioCh:
		if !ok {
			r.audioCh = nil
			return r.ReadPacket(ctx)
		}
		if c.err != nil {
			return model.Packet{}, false, model.InputError("reader", "audio demux read failed", c.err)
		}
		return model.Packet{StreamIndex: r.audioIdx, Kind: model.KindAudio, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
	default:
	}
	if r.videoCh == nil && r.audioCh == nil {
		return model.Packet{}, false, nil
	}
	// block on whichever channel still exists
	if r.videoCh != nil && r.audioCh != nil {
		select {
		case c, ok := <-r.videoCh:
			if !ok {
				r.videoCh = nil
				return r.ReadPacket(ctx)
			}
			return model.Packet{StreamIndex: r.videoIdx, Kind: model.KindVideo, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
		case c, ok := <-r.audioCh:
			if !ok {
				r.audioCh = nil
				return r.ReadPacket(ctx)
			}
			return model.Packet{StreamIndex: r.audioIdx, Kind: model.KindAudio, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
		}
	}
	if r.videoCh != nil {
		c, ok := <-r.videoCh
		if !ok {
			r.videoCh = nil
			return r.ReadPacket(ctx)
		}
		return model.Packet{StreamIndex: r.videoIdx, Kind: model.KindVideo, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
	}
	c, ok := <-r.audioCh
	if !ok {
		r.audioCh = nil
		return r.ReadPacket(ctx)
	}
	return model.Packet{StreamIndex: r.audioIdx, Kind: model.KindAudio, Data: c.data, PTS: model.PTSUnset, DTS: model.PTSUnset}, true, nil
}

func (r *reader) Close() error {
	if r.proc != nil {
		return r.proc.Kill()
	}
	return nil
}
