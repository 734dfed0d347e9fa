package sink

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"

	"github.com/modoterra/droidsym/pkg/core"
)

// Journal forwards output to the systemd journal.
type Journal struct {
	identifier string
	pkg        string
}

// NewJournal returns a journal sink, or an error when no journal is reachable.
func NewJournal(identifier, pkg string) (*Journal, error) {
	if !journal.Enabled() {
		return nil, fmt.Errorf("systemd journal is not available")
	}
	return &Journal{identifier: identifier, pkg: pkg}, nil
}

func (j *Journal) Emit(out core.Output) error {
	return journal.Send(out.Text, priority(out.Severity), j.fields(out))
}

func (j *Journal) fields(out core.Output) map[string]string {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": j.identifier,
		"ANDROID_PACKAGE":   j.pkg,
		"ANDROID_PRIORITY":  out.Severity.Letter(),
	}
	if out.Address != "" {
		vars["CRASH_ADDRESS"] = out.Address
	}
	if out.Resolved {
		vars["CRASH_FRAME_RESOLVED"] = "1"
	}
	return vars
}

func priority(s core.Severity) journal.Priority {
	switch s {
	case core.SeverityVerbose, core.SeverityDebug:
		return journal.PriDebug
	case core.SeverityInfo:
		return journal.PriInfo
	case core.SeverityWarn:
		return journal.PriWarning
	case core.SeverityError:
		return journal.PriErr
	default:
		return journal.PriCrit
	}
}
