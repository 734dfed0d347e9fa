// Package policy decides which classified lines reach the output and which
// trigger symbolization.
package policy

import "github.com/modoterra/droidsym/pkg/core"

// StacktracePrefix marks symbolized frames in the output.
const StacktracePrefix = "[Rust stacktrace] "

// MaxVerbosity is the highest supported verbosity level.
const MaxVerbosity = 3

// Config is the output configuration. It is fixed for the lifetime of a run.
type Config struct {
	Verbosity         int
	RawStacktraceOnly bool
	IncludeTimestamp  bool
}

// Decision is the outcome for one line.
type Decision struct {
	Emit             bool
	AttemptSymbolize bool
	Formatted        string // set when Emit is true
}

// Policy applies a Config to classified lines.
type Policy struct {
	cfg Config
}

// New creates a policy for cfg.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Config returns the policy's configuration.
func (p *Policy) Config() Config { return p.cfg }

// Decide returns what to do with line.
func (p *Policy) Decide(line core.ClassifiedLine) Decision {
	fatal := line.Severity == core.SeverityFatal
	if p.cfg.RawStacktraceOnly {
		return Decision{AttemptSymbolize: fatal}
	}
	if !p.visible(line.Severity) {
		return Decision{}
	}
	return Decision{
		Emit:             true,
		AttemptSymbolize: fatal,
		Formatted:        p.Format(line),
	}
}

func (p *Policy) visible(s core.Severity) bool {
	switch s {
	case core.SeverityVerbose, core.SeverityDebug:
		return p.cfg.Verbosity >= 3
	case core.SeverityInfo:
		return p.cfg.Verbosity >= 2
	case core.SeverityWarn:
		return p.cfg.Verbosity >= 1
	case core.SeverityError, core.SeverityFatal:
		return true
	}
	return false
}

// Format renders line as it is emitted.
func (p *Policy) Format(line core.ClassifiedLine) string {
	if p.cfg.IncludeTimestamp && line.Timestamp != "" {
		return line.Timestamp + " " + line.Message
	}
	return line.Message
}

// FormatResolved renders a symbolized frame.
func FormatResolved(symbol string) string {
	return StacktracePrefix + symbol
}

// FormatUnresolved renders a frame whose address could not be symbolized.
func FormatUnresolved(address string) string {
	return StacktracePrefix + address + " (unresolved)"
}

// EmitUnresolved reports whether frames that failed to resolve are shown.
// Raw mode only ever shows resolved frames.
func (p *Policy) EmitUnresolved() bool {
	return !p.cfg.RawStacktraceOnly
}
