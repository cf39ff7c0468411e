package ffmpegproc

import (
	"context"
	"strconv"
	"sync"

	"github.com/mantonx/transcodecore/internal/core/codec"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// resampler drives a long-lived ffmpeg audio subprocess converting raw
// f32le PCM between sample rate and channel layout. Output bytes are
// accumulated into buf so PullExact can hand back exactly n samples' worth
// regardless of how ffmpeg chunked its stdout writes.
type resampler struct {
	dstRate, dstChannels int

	proc     Process
	mu       sync.Mutex
	buf      []byte
	eof      bool
	flushing bool // set by Push(Null); only then does PullExact wait for output
	readCh   chan frameChunk
}

func newResampler(ctx context.Context, runner CommandRunner, srcRate, dstRate, srcChannels, dstChannels int, sampleFmt string) (*resampler, error) {
	args := []string{
		"-v", "error",
		"-f", "f32le", "-ar", strconv.Itoa(srcRate), "-ac", strconv.Itoa(srcChannels),
		"-i", "pipe:0",
		"-ar", strconv.Itoa(dstRate), "-ac", strconv.Itoa(dstChannels),
		"-f", "f32le", "pipe:1",
	}
	proc, err := runner.Start(ctx, ffmpegPath(), args)
	if err != nil {
		return nil, err
	}
	r := &resampler{dstRate: dstRate, dstChannels: dstChannels, proc: proc, readCh: make(chan frameChunk, 16)}
	go pumpReader(proc.Stdout(), r.readCh)
	return r, nil
}

func pumpReader(rd interface{ Read([]byte) (int, error) }, out chan<- frameChunk) {
	buf := make([]byte, 64*1024)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			out <- frameChunk{data: append([]byte(nil), buf[:n]...)}
		}
		if err != nil {
			close(out)
			return
		}
	}
}

func (r *resampler) drainAvailable() {
	for {
		select {
		case c, ok := <-r.readCh:
			if !ok {
				r.eof = true
				return
			}
			r.buf = append(r.buf, c.data...)
		default:
			return
		}
	}
}

func (r *resampler) Push(frame model.Frame) *model.Error {
	if frame.Data == nil {
		r.flushing = true
		r.proc.Stdin().Close()
		return nil
	}
	if _, err := r.proc.Stdin().Write(frame.Data); err != nil {
		return model.CodecError("resampler", "write failed", err)
	}
	return nil
}

func (r *resampler) PullExact(n int) (model.Frame, codec.NeedStatus, *model.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	need := n * r.dstChannels * 4
	r.drainAvailable()
	for len(r.buf) < need && !r.eof && r.flushing {
		c, ok := <-r.readCh
		if !ok {
			r.eof = true
			break
		}
		r.buf = append(r.buf, c.data...)
	}
	if len(r.buf) < need {
		if r.eof {
			return model.Frame{}, codec.Drained, nil
		}
		return model.Frame{}, codec.NeedMore, nil
	}
	data := r.buf[:need]
	r.buf = r.buf[need:]
	return model.Frame{
		Kind: model.KindAudio, Data: data, SampleRate: r.dstRate, Channels: r.dstChannels,
		SampleFmt: "f32le", NumSamples: n, TimeBase: model.SampleRateBase(r.dstRate),
	}, codec.HaveOutput, nil
}

func (r *resampler) PullRemainder() (model.Frame, bool, *model.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainAvailable()
	for !r.eof {
		c, ok := <-r.readCh
		if !ok {
			r.eof = true
			break
		}
		r.buf = append(r.buf, c.data...)
	}
	frameBytes := r.dstChannels * 4
	if frameBytes == 0 || len(r.buf) < frameBytes {
		r.buf = nil
		return model.Frame{}, false, nil
	}
	usable := (len(r.buf) / frameBytes) * frameBytes
	data := r.buf[:usable]
	r.buf = nil
	return model.Frame{
		Kind: model.KindAudio, Data: data, SampleRate: r.dstRate, Channels: r.dstChannels,
		SampleFmt: "f32le", NumSamples: usable / frameBytes, TimeBase: model.SampleRateBase(r.dstRate),
	}, true, nil
}

func (r *resampler) Close() error {
	if r.proc == nil {
		return nil
	}
	return r.proc.Kill()
}
