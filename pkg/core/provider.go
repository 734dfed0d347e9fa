package core

import (
	"context"
	"io"
)

// LogSource is the interface all log providers must implement.
type LogSource interface {
	// Name returns the source's identifier (e.g., "logcat", "file").
	Name() string

	// Open starts the source and returns its line stream.
	// Closing the reader stops the source.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sink receives every line the pipeline emits.
type Sink interface {
	Emit(out Output) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(out Output) error

func (f SinkFunc) Emit(out Output) error { return f(out) }
