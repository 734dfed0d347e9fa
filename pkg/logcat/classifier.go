// Package logcat parses and filters lines of `adb logcat` output.
package logcat

import (
	"regexp"
	"strings"

	"github.com/modoterra/droidsym/pkg/core"
)

// linePattern matches the default "threadtime" layout:
//
//	06-01 12:00:00.000  1234  5678 F libc    : message
//
// Any number of numeric fields (pid, tid, uid) may sit between the
// timestamp and the priority letter.
const linePattern = `^\s*(\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\.\d{3})\s+(?:\d+\s+)+([A-Za-z])\s+(.*?)\r?$`

// Classifier splits raw logcat lines into timestamp, severity and message.
type Classifier struct {
	re *regexp.Regexp
}

// NewClassifier compiles the line pattern.
func NewClassifier() *Classifier {
	return &Classifier{re: regexp.MustCompile(linePattern)}
}

// Classify parses raw. It returns false for lines of any other shape and for
// priority letters that do not map to a severity.
func (c *Classifier) Classify(raw string) (core.ClassifiedLine, bool) {
	m := c.re.FindStringSubmatch(raw)
	if m == nil {
		return core.ClassifiedLine{}, false
	}
	sev, ok := core.ParseSeverity(m[2])
	if !ok {
		return core.ClassifiedLine{}, false
	}
	return core.ClassifiedLine{
		Timestamp: m[1],
		Severity:  sev,
		Message:   m[3],
	}, true
}

// Matches reports whether raw belongs to pkg. The test runs on the whole line,
// since the package often only shows up in the tag or a library path.
func Matches(raw, pkg string) bool {
	return strings.Contains(raw, pkg)
}
