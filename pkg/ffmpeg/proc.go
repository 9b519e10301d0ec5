package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Proc is a long-running ffmpeg child with piped media data.
type Proc struct {
	name string
	cmd  *exec.Cmd

	stdin  io.WriteCloser
	stdout io.ReadCloser
	tail   *tailWriter

	waitC   chan struct{}
	waitErr error
	stopped sync.Once
}

type procConf struct {
	stdoutData bool
}

type ProcOption func(*procConf)

// WithStdoutData marks stdout as the media output pipe. Without it
// stdout is discarded, stdin is always piped in.
func WithStdoutData() ProcOption { return func(c *procConf) { c.stdoutData = true } }

// Start launches a named ffmpeg child. The name tags log lines and
// error messages (encode, mic, cam).
func (f *Ffmpeg) Start(name string, args []string, opts ...ProcOption) (*Proc, error) {
	conf := procConf{}
	for _, opt := range opts {
		opt(&conf)
	}

	cmd := exec.Command(f.Path, args...)
	p := &Proc{name: name, cmd: cmd, tail: newTailWriter(4 << 10), waitC: make(chan struct{})}
	cmd.Stderr = p.tail

	var err error
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, err
	}
	if conf.stdoutData {
		if p.stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, err
		}
	} else {
		cmd.Stdout = io.Discard
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg %s spawn: %w", name, err)
	}
	f.log.Debug().Msgf("ffmpeg %s started (pid %d)", name, cmd.Process.Pid)

	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitC)
	}()
	return p, nil
}

func (p *Proc) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *Proc) Stdout() io.Reader { return p.stdout }

// Done is closed once the child exits.
func (p *Proc) Done() <-chan struct{} { return p.waitC }

// Exited reports whether the child is gone already.
func (p *Proc) Exited() bool {
	select {
	case <-p.waitC:
		return true
	default:
		return false
	}
}

func (p *Proc) Wait() error {
	<-p.waitC
	return p.exitErr()
}

// Stop shuts the child down in steps: the interactive quit key first,
// then the input pipe closes, a kill after the grace period.
func (p *Proc) Stop(grace time.Duration) error {
	var err error
	p.stopped.Do(func() {
		_, _ = p.stdin.Write([]byte("q"))
		_ = p.stdin.Close()
		select {
		case <-p.waitC:
		case <-time.After(grace):
			_ = p.cmd.Process.Kill()
			<-p.waitC
		}
		err = p.exitErr()
	})
	return err
}

// Finish ends a child fed through stdin: the pipe closes and the
// child gets the grace period to flush its output file. Unlike Stop
// no quit key is written, stdin carries media data here. A kill on
// grace expiry is an error, the output is likely truncated.
func (p *Proc) Finish(grace time.Duration) error {
	var err error
	p.stopped.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.waitC:
			err = p.exitErr()
		case <-time.After(grace):
			_ = p.cmd.Process.Kill()
			<-p.waitC
			err = fmt.Errorf("ffmpeg %s did not flush within %v", p.name, grace)
		}
	})
	return err
}

func (p *Proc) exitErr() error {
	if p.waitErr == nil {
		return nil
	}
	// a killed or quit child is a normal shutdown, not an error
	var exit *exec.ExitError
	if errors.As(p.waitErr, &exit) && !exit.Exited() {
		return nil
	}
	if tail := p.tail.String(); tail != "" {
		return fmt.Errorf("ffmpeg %s: %w: %s", p.name, p.waitErr, tail)
	}
	return fmt.Errorf("ffmpeg %s: %w", p.name, p.waitErr)
}

// Run executes a short-lived command (mux, concat) to completion.
func (f *Ffmpeg) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.Path, args...)
	tail := newTailWriter(4 << 10)
	cmd.Stdout = io.Discard
	cmd.Stderr = tail
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail.String())
	}
	return nil
}

// Output executes a short-lived command and returns its stderr, which
// is where ffmpeg prints device listings. A non-zero exit with output
// present is not an error here.
func (f *Ffmpeg) Output(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, f.Path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if out.Len() > 0 {
		return out.String(), nil
	}
	return "", err
}

// tailWriter keeps the last n bytes written.
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailWriter(max int) *tailWriter { return &tailWriter{max: max} }

func (t *tailWriter) Write(b []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	t.mu.Unlock()
	return len(b), nil
}

func (t *tailWriter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
