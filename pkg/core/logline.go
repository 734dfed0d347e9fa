package core

import "fmt"

// Severity is the logcat priority of a line.
type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"verbose", "debug", "info", "warn", "error", "fatal"}

func (s Severity) String() string {
	if s < SeverityVerbose || s > SeverityFatal {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Letter returns the logcat priority letter for s.
func (s Severity) Letter() string {
	switch s {
	case SeverityVerbose:
		return "V"
	case SeverityDebug:
		return "D"
	case SeverityInfo:
		return "I"
	case SeverityWarn:
		return "W"
	case SeverityError:
		return "E"
	case SeverityFatal:
		return "F"
	}
	return "?"
}

// ParseSeverity maps a logcat priority letter to a Severity.
// "S" (silent) is gated together with verbose output.
func ParseSeverity(letter string) (Severity, bool) {
	switch letter {
	case "V", "S":
		return SeverityVerbose, true
	case "D":
		return SeverityDebug, true
	case "I":
		return SeverityInfo, true
	case "W":
		return SeverityWarn, true
	case "E":
		return SeverityError, true
	case "F":
		return SeverityFatal, true
	}
	return 0, false
}

// ClassifiedLine is a logcat line split into its parts.
// Timestamp is empty when the source carried none.
type ClassifiedLine struct {
	Timestamp string
	Severity  Severity
	Message   string
}

// Output is a single line produced by the pipeline.
type Output struct {
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
	Resolved bool     `json:"resolved,omitempty"` // a symbolized crash frame
	Address  string   `json:"address,omitempty"`
}
