// Package pipeline wires log classification, output policy and
// symbolization into a single pass over a log stream.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/modoterra/droidsym/pkg/core"
	"github.com/modoterra/droidsym/pkg/crash"
	"github.com/modoterra/droidsym/pkg/logcat"
	"github.com/modoterra/droidsym/pkg/policy"
	"github.com/modoterra/droidsym/pkg/symbolizer"
)

// maxLineSize bounds a single logcat line.
const maxLineSize = 1024 * 1024

// Config is the pipeline configuration. It is fixed for the lifetime of a run.
type Config struct {
	TargetPackage string
	Output        policy.Config
}

// Pipeline consumes one log stream. Each line is fully processed, including
// any resolver round-trips, before the next one is read.
type Pipeline struct {
	cfg        Config
	classifier *logcat.Classifier
	extractor  *crash.Extractor
	policy     *policy.Policy
	resolver   symbolizer.Resolver
	sink       core.Sink
	logger     *slog.Logger

	started      atomic.Bool
	state        atomic.Int32
	resolverDown atomic.Bool

	linesRead         atomic.Uint64
	linesMatched      atomic.Uint64
	linesEmitted      atomic.Uint64
	addressesFound    atomic.Uint64
	addressesResolved atomic.Uint64
	resolveFailures   atomic.Uint64
}

// New creates a pipeline. The pipeline owns resolver and closes it when Run
// returns.
func New(cfg Config, resolver symbolizer.Resolver, sink core.Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: logcat.NewClassifier(),
		extractor:  crash.NewExtractor(),
		policy:     policy.New(cfg.Output),
		resolver:   resolver,
		sink:       sink,
		logger:     logger,
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() core.State {
	return core.State(p.state.Load())
}

func (p *Pipeline) setState(s core.State) {
	old := core.State(p.state.Swap(int32(s)))
	if old != s {
		p.logger.Debug("pipeline state", "from", old, "to", s)
	}
}

// Run reads r line by line until it ends, ctx is cancelled or the sink fails,
// then shuts the resolver down. Cancelling ctx closes r if it is an io.Closer.
// Run may be called only once.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (err error) {
	if p.started.Swap(true) {
		return fmt.Errorf("pipeline already %s", p.State())
	}
	defer p.drain()

	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if p.State() == core.StateIdle {
			p.setState(core.StateStreaming)
		}
		if err := p.processLine(scanner.Text()); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log stream: %w", err)
	}
	return nil
}

func (p *Pipeline) drain() {
	p.setState(core.StateDraining)
	if err := p.resolver.Close(); err != nil {
		p.logger.Warn("resolver did not exit cleanly", "err", err)
	}
	p.setState(core.StateTerminated)
}

func (p *Pipeline) processLine(raw string) error {
	p.linesRead.Add(1)
	if !logcat.Matches(raw, p.cfg.TargetPackage) {
		return nil
	}
	line, ok := p.classifier.Classify(raw)
	if !ok {
		return nil
	}
	p.linesMatched.Add(1)

	d := p.policy.Decide(line)
	if d.Emit {
		if err := p.emit(core.Output{Severity: line.Severity, Text: d.Formatted}); err != nil {
			return err
		}
	}
	if !d.AttemptSymbolize {
		return nil
	}
	for _, addr := range p.extractor.Extract(line.Message) {
		if err := p.symbolize(addr); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) symbolize(addr string) error {
	p.addressesFound.Add(1)
	if p.resolverDown.Load() {
		// The resolver is not called again, but every skipped frame is reported.
		p.logger.Warn("resolver unavailable, frame left unresolved", "address", addr)
		return p.emitUnresolved(addr)
	}

	sym, err := p.Resolve(addr)
	if err != nil {
		p.logger.Warn("symbolization failed", "address", addr, "err", err)
		return p.emitUnresolved(addr)
	}
	return p.emit(core.Output{
		Severity: core.SeverityFatal,
		Text:     policy.FormatResolved(sym),
		Resolved: true,
		Address:  addr,
	})
}

func (p *Pipeline) emitUnresolved(addr string) error {
	if !p.policy.EmitUnresolved() {
		return nil
	}
	return p.emit(core.Output{
		Severity: core.SeverityFatal,
		Text:     policy.FormatUnresolved(addr),
		Address:  addr,
	})
}

func (p *Pipeline) emit(out core.Output) error {
	if err := p.sink.Emit(out); err != nil {
		return fmt.Errorf("emit: %w", err)
	}
	p.linesEmitted.Add(1)
	return nil
}

// Resolve symbolizes a single address through the pipeline's resolver. It
// shares the resolver with the running stream, one request at a time.
// Once the resolver has failed, Resolve returns ErrResolverUnavailable
// without contacting it.
func (p *Pipeline) Resolve(addr string) (string, error) {
	if p.resolverDown.Load() || p.State() == core.StateTerminated {
		return "", symbolizer.ErrResolverUnavailable
	}
	sym, err := p.resolver.Resolve(addr)
	if err != nil {
		p.resolveFailures.Add(1)
		if errors.Is(err, symbolizer.ErrResolverUnavailable) {
			p.resolverDown.Store(true)
		}
		return "", err
	}
	p.addressesResolved.Add(1)
	return sym, nil
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() core.Stats {
	state := p.State()
	available := !p.resolverDown.Load() && state != core.StateTerminated
	if a, ok := p.resolver.(interface{ Available() bool }); ok && available {
		available = a.Available()
	}
	return core.Stats{
		State:             state,
		LinesRead:         p.linesRead.Load(),
		LinesMatched:      p.linesMatched.Load(),
		LinesEmitted:      p.linesEmitted.Load(),
		AddressesFound:    p.addressesFound.Load(),
		AddressesResolved: p.addressesResolved.Load(),
		ResolveFailures:   p.resolveFailures.Load(),
		ResolverAvailable: available,
	}
}
