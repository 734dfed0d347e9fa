// Package adb streams device logs from `adb logcat`.
package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/modoterra/droidsym/pkg/subproc"
)

// DefaultLogcatArgs selects the layout the classifier understands.
var DefaultLogcatArgs = []string{"-v", "threadtime"}

// Source runs `adb [-s serial] logcat <args>` and exposes its stdout.
type Source struct {
	adbPath string
	serial  string
	args    []string
	stderr  io.Writer
	logger  *slog.Logger
}

// New creates a logcat source. A nil args uses DefaultLogcatArgs.
func New(adbPath, serial string, args []string, stderr io.Writer, logger *slog.Logger) *Source {
	if args == nil {
		args = DefaultLogcatArgs
	}
	return &Source{
		adbPath: adbPath,
		serial:  serial,
		args:    args,
		stderr:  stderr,
		logger:  logger,
	}
}

func (s *Source) Name() string { return "logcat" }

// Args returns the full adb command line, without the binary.
func (s *Source) Args() []string {
	var args []string
	if s.serial != "" {
		args = append(args, "-s", s.serial)
	}
	args = append(args, "logcat")
	return append(args, s.args...)
}

// Open starts adb. The stream ends when adb exits; closing it stops adb.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	proc, err := subproc.Start(ctx, s.adbPath, s.Args(), subproc.Options{Stderr: s.stderr}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("logcat: %w", err)
	}
	s.logger.Info("streaming logcat", "adb", s.adbPath, "serial", s.serial, "pid", proc.Pid())
	return &stream{proc: proc, logger: s.logger}, nil
}

type stream struct {
	proc   *subproc.Process
	logger *slog.Logger
}

func (st *stream) Read(b []byte) (int, error) {
	n, err := st.proc.Stdout().Read(b)
	if err == io.EOF {
		var exitErr *subproc.ExitError
		if werr := st.proc.Wait(); errors.As(werr, &exitErr) {
			st.logger.Warn("logcat exited", "code", exitErr.Code)
		}
	}
	return n, err
}

func (st *stream) Close() error {
	if err := st.proc.Stop(); err != nil {
		st.logger.Debug("logcat stopped", "err", err)
	}
	return nil
}
