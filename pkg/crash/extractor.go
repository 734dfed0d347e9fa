// Package crash finds native crash-frame addresses in tombstone output.
package crash

import (
	"regexp"
	"strings"
)

// Marker is the substring that flags a message as a native crash frame
// worth symbolizing.
const Marker = "offset"

// framePattern matches `#<N> <mode> <address> <rest>`, e.g.
//
//	#00 pc 0000000000001a2b  /data/app/.../libmain.so (offset 0x1000)
const framePattern = `#\d+\s+\S+\s+(\S+)\s+\S`

// Extractor pulls frame addresses out of fatal messages.
type Extractor struct {
	re *regexp.Regexp
}

// NewExtractor compiles the frame pattern.
func NewExtractor() *Extractor {
	return &Extractor{re: regexp.MustCompile(framePattern)}
}

// Extract returns the frame addresses in message in order of appearance.
// Messages without the crash marker yield nothing.
func (e *Extractor) Extract(message string) []string {
	if !strings.Contains(message, Marker) {
		return nil
	}
	var addrs []string
	for pos := 0; pos < len(message); {
		m := e.re.FindStringSubmatchIndex(message[pos:])
		if m == nil {
			break
		}
		addrs = append(addrs, message[pos+m[2]:pos+m[3]])
		// The next frame may start inside the rest of this one.
		pos += m[3]
	}
	return addrs
}
