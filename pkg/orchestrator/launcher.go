package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Command describes one child annotator invocation
type Command struct {
	Path string
	Args []string
	// Env is appended to the parent environment
	Env []string
}

// ExitResult is the final status of a child process
type ExitResult struct {
	Code   int
	Stderr string
	// Err is set when the process could not be waited on or was killed
	Err error
}

// Process is a running child. Lines yields stdout lines in order and is
// closed at EOF. Wait must be called after Lines is drained.
type Process interface {
	Lines() <-chan string
	Wait() ExitResult
}

// Launcher starts child processes
type Launcher interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecLauncher runs commands with os/exec
type ExecLauncher struct{}

const maxLineSize = 1 << 20

// Start launches cmd. The process is killed when ctx is cancelled.
func (ExecLauncher) Start(ctx context.Context, c Command) (Process, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) //nolint:gosec
	cmd.Env = append(os.Environ(), c.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p := &execProcess{
		cmd:   cmd,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	go p.scan(ctx, stdout)
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	lines   chan string
	done    chan struct{}
	stderr  lockedBuffer
	scanErr error
}

func (p *execProcess) scan(ctx context.Context, r io.Reader) {
	defer close(p.done)
	defer close(p.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-ctx.Done():
			// Keep draining so the child never blocks on a full pipe
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		p.scanErr = err
		_, _ = io.Copy(io.Discard, r)
	}
}

func (p *execProcess) Lines() <-chan string { return p.lines }

func (p *execProcess) Wait() ExitResult {
	<-p.done
	err := p.cmd.Wait()
	res := ExitResult{Stderr: p.stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.Code = exitErr.ExitCode()
		if res.Code < 0 {
			// Killed by a signal
			res.Err = err
		}
	default:
		res.Code = -1
		res.Err = err
	}
	if res.Err == nil && p.scanErr != nil {
		res.Err = fmt.Errorf("scan output: %w", p.scanErr)
	}
	return res
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
