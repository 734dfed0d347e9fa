package symbolizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"github.com/modoterra/droidsym/pkg/subproc"
)

// Config describes how to run the resolver process.
type Config struct {
	Path string
	Args []string
	// ResponseLines is the number of output lines the resolver writes per
	// address. They are joined with a single space. Zero means one.
	ResponseLines int
	// Demangle runs names that are still mangled through a demangler.
	Demangle bool
}

// Process drives a long-lived resolver child: one address per line on its
// stdin, ResponseLines lines back on its stdout, strictly in order.
type Process struct {
	cfg    Config
	proc   *subproc.Process
	stdin  io.Writer
	stdout *bufio.Reader
	logger *slog.Logger

	mu   sync.Mutex
	dead error
}

// Start spawns the resolver.
func Start(ctx context.Context, cfg Config, logger *slog.Logger) (*Process, error) {
	if cfg.ResponseLines <= 0 {
		cfg.ResponseLines = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	proc, err := subproc.Start(ctx, cfg.Path, cfg.Args, subproc.Options{Stdin: true}, logger)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	logger.Info("resolver started", "path", cfg.Path, "args", cfg.Args, "pid", proc.Pid())
	return &Process{
		cfg:    cfg,
		proc:   proc,
		stdin:  proc.Stdin(),
		stdout: bufio.NewReader(proc.Stdout()),
		logger: logger,
	}, nil
}

// Resolve writes address to the resolver and reads its answer.
func (p *Process) Resolve(address string) (string, error) {
	if address == "" || strings.ContainsAny(address, "\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dead != nil {
		return "", p.dead
	}

	if _, err := io.WriteString(p.stdin, address+"\n"); err != nil {
		return "", p.fail(fmt.Errorf("write %s: %w", address, err))
	}

	lines := make([]string, 0, p.cfg.ResponseLines)
	for i := 0; i < p.cfg.ResponseLines; i++ {
		line, err := p.stdout.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", p.fail(fmt.Errorf("read reply for %s: %w", address, err))
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if p.cfg.Demangle {
			line = demangleLine(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " "), nil
}

// fail marks the resolver dead. Callers hold p.mu.
func (p *Process) fail(err error) error {
	p.dead = fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
	return p.dead
}

// Available reports whether the resolver can still take requests.
func (p *Process) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead == nil && !p.proc.Exited()
}

// Close closes the resolver's stdin and waits for it to exit.
func (p *Process) Close() error {
	p.mu.Lock()
	if p.dead == nil {
		p.dead = fmt.Errorf("%w: closed", ErrResolverUnavailable)
	}
	p.mu.Unlock()
	return p.proc.Stop()
}

func demangleLine(line string) string {
	if d := demangle.Filter(line); d != line {
		return d
	}
	fields := strings.Split(line, " ")
	changed := false
	for i, f := range fields {
		if d := demangle.Filter(f); d != f {
			fields[i] = d
			changed = true
		}
	}
	if !changed {
		return line
	}
	return strings.Join(fields, " ")
}
