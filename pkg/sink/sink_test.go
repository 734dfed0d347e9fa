package sink

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/droidsym/pkg/core"
)

func TestWriterPlain(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	w.Emit(core.Output{Severity: core.SeverityFatal, Text: "Fatal signal 11"})
	w.Emit(core.Output{Severity: core.SeverityFatal, Text: "[Rust stacktrace] main src/lib.rs:1", Resolved: true})

	want := "Fatal signal 11\n[Rust stacktrace] main src/lib.rs:1\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriterColorKeepsText(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Emit(core.Output{Severity: core.SeverityWarn, Text: "careful"})
	if !strings.Contains(buf.String(), "careful") || !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriterColorOnNonTerminal(t *testing.T) {
	for _, out := range []core.Output{
		{Severity: core.SeverityFatal, Text: "boom"},
		{Severity: core.SeverityFatal, Text: "[Rust stacktrace] main", Resolved: true},
	} {
		var buf bytes.Buffer
		NewWriter(&buf, true).Emit(out)
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Errorf("color on a buffer produced no escapes: %q", buf.String())
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestJournalPriority(t *testing.T) {
	tests := []struct {
		sev  core.Severity
		want journal.Priority
	}{
		{core.SeverityVerbose, journal.PriDebug},
		{core.SeverityDebug, journal.PriDebug},
		{core.SeverityInfo, journal.PriInfo},
		{core.SeverityWarn, journal.PriWarning},
		{core.SeverityError, journal.PriErr},
		{core.SeverityFatal, journal.PriCrit},
	}
	for _, tt := range tests {
		if got := priority(tt.sev); got != tt.want {
			t.Errorf("priority(%v) = %v, want %v", tt.sev, got, tt.want)
		}
	}
}

func TestJournalFields(t *testing.T) {
	j := &Journal{identifier: "droidsym", pkg: "com.example.app"}
	got := j.fields(core.Output{Severity: core.SeverityFatal, Text: "x", Resolved: true, Address: "1a2b"})
	want := map[string]string{
		"SYSLOG_IDENTIFIER":    "droidsym",
		"ANDROID_PACKAGE":      "com.example.app",
		"ANDROID_PRIORITY":     "F",
		"CRASH_ADDRESS":        "1a2b",
		"CRASH_FRAME_RESOLVED": "1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMulti(t *testing.T) {
	var a, b []string
	boom := errors.New("boom")
	m := Multi{
		core.SinkFunc(func(o core.Output) error { a = append(a, o.Text); return boom }),
		core.SinkFunc(func(o core.Output) error { b = append(b, o.Text); return nil }),
	}
	err := m.Emit(core.Output{Text: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("every sink should see the output: %v %v", a, b)
	}
}
