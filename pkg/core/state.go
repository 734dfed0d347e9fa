package core

import "fmt"

// State is the lifecycle phase of a pipeline run.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateTerminated; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	State             State  `json:"state"`
	LinesRead         uint64 `json:"lines_read"`
	LinesMatched      uint64 `json:"lines_matched"`
	LinesEmitted      uint64 `json:"lines_emitted"`
	AddressesFound    uint64 `json:"addresses_found"`
	AddressesResolved uint64 `json:"addresses_resolved"`
	ResolveFailures   uint64 `json:"resolve_failures"`
	ResolverAvailable bool   `json:"resolver_available"`
}
