package policy

import (
	"testing"

	"github.com/modoterra/droidsym/pkg/core"
)

var allSeverities = []core.Severity{
	core.SeverityVerbose,
	core.SeverityDebug,
	core.SeverityInfo,
	core.SeverityWarn,
	core.SeverityError,
	core.SeverityFatal,
}

func line(s core.Severity) core.ClassifiedLine {
	return core.ClassifiedLine{Timestamp: "06-01 12:00:00.000", Severity: s, Message: "msg"}
}

func TestDecideNormalMode(t *testing.T) {
	tests := []struct {
		verbosity int
		visible   map[core.Severity]bool
	}{
		{0, map[core.Severity]bool{core.SeverityError: true, core.SeverityFatal: true}},
		{1, map[core.Severity]bool{core.SeverityWarn: true, core.SeverityError: true, core.SeverityFatal: true}},
		{2, map[core.Severity]bool{core.SeverityInfo: true, core.SeverityWarn: true, core.SeverityError: true, core.SeverityFatal: true}},
		{3, map[core.Severity]bool{
			core.SeverityVerbose: true, core.SeverityDebug: true, core.SeverityInfo: true,
			core.SeverityWarn: true, core.SeverityError: true, core.SeverityFatal: true,
		}},
	}

	for _, tt := range tests {
		p := New(Config{Verbosity: tt.verbosity})
		for _, s := range allSeverities {
			d := p.Decide(line(s))
			if d.Emit != tt.visible[s] {
				t.Errorf("verbosity %d, %v: emit got %v, want %v", tt.verbosity, s, d.Emit, tt.visible[s])
			}
			if d.AttemptSymbolize != (s == core.SeverityFatal) {
				t.Errorf("verbosity %d, %v: symbolize got %v", tt.verbosity, s, d.AttemptSymbolize)
			}
		}
	}
}

func TestVerbosityMonotonic(t *testing.T) {
	for hi := 0; hi <= MaxVerbosity; hi++ {
		for lo := 0; lo <= hi; lo++ {
			pHi := New(Config{Verbosity: hi})
			pLo := New(Config{Verbosity: lo})
			for _, s := range allSeverities {
				if pLo.Decide(line(s)).Emit && !pHi.Decide(line(s)).Emit {
					t.Errorf("%v emitted at verbosity %d but not at %d", s, lo, hi)
				}
			}
		}
	}
}

func TestDecideRawMode(t *testing.T) {
	p := New(Config{Verbosity: 3, RawStacktraceOnly: true})
	for _, s := range allSeverities {
		d := p.Decide(line(s))
		if d.Emit {
			t.Errorf("%v: raw mode must not emit log lines", s)
		}
		if d.AttemptSymbolize != (s == core.SeverityFatal) {
			t.Errorf("%v: symbolize got %v", s, d.AttemptSymbolize)
		}
	}
	if p.EmitUnresolved() {
		t.Error("raw mode must not emit unresolved frames")
	}
}

func TestFormat(t *testing.T) {
	l := line(core.SeverityError)

	if got := New(Config{}).Decide(l).Formatted; got != "msg" {
		t.Errorf("bare: got %q", got)
	}
	if got := New(Config{IncludeTimestamp: true}).Decide(l).Formatted; got != "06-01 12:00:00.000 msg" {
		t.Errorf("timestamped: got %q", got)
	}

	l.Timestamp = ""
	if got := New(Config{IncludeTimestamp: true}).Format(l); got != "msg" {
		t.Errorf("absent timestamp: got %q", got)
	}
}

func TestFormatResolved(t *testing.T) {
	if got := FormatResolved("my_function src/lib.rs:42"); got != "[Rust stacktrace] my_function src/lib.rs:42" {
		t.Errorf("got %q", got)
	}
	if got := FormatUnresolved("0000000000001a2b"); got != "[Rust stacktrace] 0000000000001a2b (unresolved)" {
		t.Errorf("got %q", got)
	}
}
