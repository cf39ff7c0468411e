// Package ffmpegproc is a CodecAdapter implementation backed by the ffmpeg
// and ffprobe command-line tools, reached through os/exec rather than a
// cgo libavcodec/libavformat binding. It is the reference realisation of
// the codec.CodecAdapter contract: a production deployment may substitute
// a cgo or hardware-vendor adapter behind the same interfaces without any
// change above the codec package boundary.
//
// Compressed demux and decode are collapsed into a single ffmpeg process
// per input (ffmpeg demuxes and decodes together when asked for raw
// output), so Decoder.Send/Recv on this adapter does no decoding: Reader
// yields raw bytes, in whatever sizes the pipe reads return, labelled as
// Packets, and Decoder only re-slices them into frame-sized Frames. A
// byte-accurate cgo adapter would split these into genuine compressed
// Packet and Decoder stages; this simplification does not change the
// codec.Decoder contract itself.
package ffmpegproc

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// CommandRunner abstracts process execution so tests can substitute a fake
// without invoking a real ffmpeg binary.
type CommandRunner interface {
	// Start begins cmd/args with stdin, stdout and stderr pipes attached and
	// returns a handle that can be waited on or killed.
	Start(ctx context.Context, name string, args []string) (Process, error)
	// Output runs cmd/args to completion and returns its stdout.
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

// Process is a running subprocess with its stdio pipes.
type Process interface {
	Stdin() interface {
		Write([]byte) (int, error)
		Close() error
	}
	Stdout() interface {
		Read([]byte) (int, error)
	}
	Stderr() interface {
		Read([]byte) (int, error)
	}
	Wait() error
	Kill() error
}

// DefaultCommandRunner shells out via os/exec.
type DefaultCommandRunner struct{}

func (DefaultCommandRunner) Start(ctx context.Context, name string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (DefaultCommandRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// startWithExtraFiles launches name/args with extra write-end pipes
// attached as fds 3, 4, ... (os/exec.Cmd.ExtraFiles), for ffmpeg's
// "pipe:N" output targets that don't fit the plain stdin/stdout/stderr
// model. The files in extra are closed by this function's own goroutine
// once the process exits; the caller keeps and closes the other end of each
// pipe (pumpPipe in reader.go, WriteTrailer/Close in writer.go). That
// goroutine also owns cmd.Wait, so the returned Process's Wait reports its
// result.
func startWithExtraFiles(ctx context.Context, name string, args []string, extra []*os.File) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.ExtraFiles = extra
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go io.Copy(io.Discard, stderr)
	p := &execProcess{cmd: cmd, stdin: stdin, stdout: nil, stderr: stderr, waited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		for _, f := range extra {
			f.Close()
		}
		close(p.waited)
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  interface {
		Write([]byte) (int, error)
		Close() error
	}
	stdout interface{ Read([]byte) (int, error) }
	stderr interface{ Read([]byte) (int, error) }

	// waited is non-nil when a goroutine (startWithExtraFiles) already owns
	// cmd.Wait; it is closed once waitErr holds that call's result.
	waited  chan struct{}
	waitErr error
}

func (p *execProcess) Stdin() interface {
	Write([]byte) (int, error)
	Close() error
} {
	return p.stdin
}

func (p *execProcess) Stdout() interface{ Read([]byte) (int, error) } { return p.stdout }
func (p *execProcess) Stderr() interface{ Read([]byte) (int, error) } { return p.stderr }
func (p *execProcess) Wait() error {
	if p.waited != nil {
		<-p.waited
		return p.waitErr
	}
	return p.cmd.Wait()
}
func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// ffmpegPath resolves the ffmpeg binary, honouring FFMPEG_PATH the way the
// rest of this codebase's command-line tooling does.
func ffmpegPath() string {
	if p := os.Getenv("FFMPEG_PATH"); p != "" {
		return p
	}
	return "ffmpeg"
}

func ffprobePath() string {
	if p := os.Getenv("FFPROBE_PATH"); p != "" {
		return p
	}
	return "ffprobe"
}
