package logcat

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/modoterra/droidsym/pkg/core"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		name   string
		raw    string
		want   core.ClassifiedLine
		wantOK bool
	}{
		{
			name:   "fatal",
			raw:    "06-01 12:00:00.000 123 456 F com.example.app: ... offset 0x1a",
			want:   core.ClassifiedLine{Timestamp: "06-01 12:00:00.000", Severity: core.SeverityFatal, Message: "com.example.app: ... offset 0x1a"},
			wantOK: true,
		},
		{
			name:   "padded pid columns",
			raw:    "10-19 08:15:42.117  4021  4040 I RustStdoutStderr: hello",
			want:   core.ClassifiedLine{Timestamp: "10-19 08:15:42.117", Severity: core.SeverityInfo, Message: "RustStdoutStderr: hello"},
			wantOK: true,
		},
		{
			name:   "uid column",
			raw:    "10-19 08:15:42.117 10234  4021  4040 W app: careful",
			want:   core.ClassifiedLine{Timestamp: "10-19 08:15:42.117", Severity: core.SeverityWarn, Message: "app: careful"},
			wantOK: true,
		},
		{
			name:   "crlf",
			raw:    "06-01 12:00:00.000 1 2 E tag: boom\r",
			want:   core.ClassifiedLine{Timestamp: "06-01 12:00:00.000", Severity: core.SeverityError, Message: "tag: boom"},
			wantOK: true,
		},
		{
			name:   "silent maps to verbose",
			raw:    "06-01 12:00:00.000 1 2 S tag: quiet",
			want:   core.ClassifiedLine{Timestamp: "06-01 12:00:00.000", Severity: core.SeverityVerbose, Message: "tag: quiet"},
			wantOK: true,
		},
		{name: "unknown letter", raw: "06-01 12:00:00.000 1 2 X tag: what"},
		{name: "no pid", raw: "06-01 12:00:00.000 F tag: missing ids"},
		{name: "banner", raw: "--------- beginning of crash"},
		{name: "brief format", raw: "F/libc    ( 1234): Fatal signal 11"},
		{name: "empty", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Classify(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("classify mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := NewClassifier()
	lines := []string{
		"06-01 12:00:00.000 123 456 F com.example.app: crash",
		"garbage",
		"06-01 12:00:00.000 123 456 Q tag: nope",
	}
	for _, raw := range lines {
		a, okA := c.Classify(raw)
		b, okB := c.Classify(raw)
		if okA != okB || a != b {
			t.Errorf("classify(%q) not stable: %v/%v vs %v/%v", raw, a, okA, b, okB)
		}
	}
}

func TestMatches(t *testing.T) {
	raw := "06-01 12:00:00.000 1 2 F DEBUG   :       #00 pc 0000000000001a2b  /data/app/com.example.app-1/lib/arm64/libmain.so (offset 0x1000)"
	if !Matches(raw, "com.example.app") {
		t.Error("expected package in library path to match")
	}
	if Matches(raw, "org.other") {
		t.Error("unexpected match")
	}
}
