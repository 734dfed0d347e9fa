// Package subproc runs long-lived child processes behind piped stdin/stdout.
package subproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultGracePeriod is how long Stop waits at each escalation step.
const DefaultGracePeriod = 5 * time.Second

// Options configures a child process.
type Options struct {
	Dir         string
	Env         map[string]string
	Stdin       bool          // pipe stdin; otherwise the child gets /dev/null
	Stderr      io.Writer     // nil discards
	GracePeriod time.Duration // 0 means DefaultGracePeriod
}

// ExitError reports a child that exited with a non-zero status.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

// Process tracks a running child process.
type Process struct {
	Name string

	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stdin     io.WriteCloser
	stdout    *io.PipeReader
	grace     time.Duration
	startedAt time.Time
	logger    *slog.Logger

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
}

// Start spawns name with args. The child is killed when ctx is cancelled.
// Stdout is delivered through Stdout until the child exits and every byte
// it wrote has been read.
func Start(ctx context.Context, name string, args []string, opts Options, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	grace := opts.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	}

	pctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(pctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Stderr = opts.Stderr
	setProcAttr(cmd)
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = grace

	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdin io.WriteCloser
	if opts.Stdin {
		var err error
		stdin, err = cmd.StdinPipe()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	// Stdout goes through an io.Pipe so that Wait only returns once the
	// reader has drained everything the child wrote.
	pr, pw := io.Pipe()
	cmd.Stdout = pw

	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &Process{
		Name:      name,
		cmd:       cmd,
		cancel:    cancel,
		stdin:     stdin,
		stdout:    pr,
		grace:     grace,
		startedAt: time.Now(),
		logger:    logger,
		done:      make(chan struct{}),
	}
	logger.Debug("process started", "name", name, "pid", cmd.Process.Pid, "args", args)

	go p.wait(pw)
	return p, nil
}

func (p *Process) wait(pw *io.PipeWriter) {
	err := p.cmd.Wait()
	pw.Close()
	p.cancel()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.ExitCode() > 0:
		err = &ExitError{Name: p.Name, Code: exitErr.ExitCode()}
	}
	p.waitErr = err
	p.logger.Debug("process exited", "name", p.Name, "uptime", time.Since(p.startedAt), "err", err)
	close(p.done)
}

// Stdin returns the child's input pipe, or nil when Options.Stdin was unset.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the child's output stream. It reports io.EOF after the
// child exits and all output has been consumed.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Pid returns the child's process ID.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the child has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits. A non-zero exit status is returned
// as *ExitError.
func (p *Process) Wait() error {
	<-p.done
	return p.waitErr
}

// Stop shuts the child down: stdin is closed first so well-behaved children
// exit on their own, then SIGTERM, then SIGKILL, each after the grace period.
// Unread stdout is discarded. Stop is safe to call more than once.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		if p.stdin != nil {
			p.stdin.Close()
		}
		// Unblock the stdout copier if nobody is reading any more.
		go io.Copy(io.Discard, p.stdout)

		select {
		case <-p.done:
			return
		case <-time.After(p.grace):
		}

		p.logger.Warn("process did not exit, terminating", "name", p.Name, "pid", p.Pid())
		terminate(p.cmd.Process)
		select {
		case <-p.done:
			return
		case <-time.After(p.grace):
		}

		p.logger.Warn("process ignored SIGTERM, killing", "name", p.Name, "pid", p.Pid())
		kill(p.cmd.Process)
	})
	return p.Wait()
}
