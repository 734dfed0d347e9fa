package sink

import (
	"errors"

	"github.com/modoterra/droidsym/pkg/core"
)

// Multi fans each output out to every sink. All sinks see every output even
// when one of them fails.
type Multi []core.Sink

func (m Multi) Emit(out core.Output) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
