// Package filetail reads saved or growing logcat output from a file or stdin.
package filetail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// pollInterval is how often a followed file is checked for new data.
const pollInterval = 250 * time.Millisecond

// Source reads log lines from a file. With Follow set it keeps waiting for
// appended lines, like `tail -f`, and starts over when the file is truncated.
type Source struct {
	path   string
	follow bool
	logger *slog.Logger
}

// New creates a file source.
func New(path string, follow bool, logger *slog.Logger) *Source {
	return &Source{path: path, follow: follow, logger: logger}
}

func (s *Source) Name() string {
	if s.path == Stdin {
		return "stdin"
	}
	return "file"
}

// Open opens the file. The returned stream ends at end of file unless the
// source follows, in which case it ends only when closed or ctx is done.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	if !s.follow {
		s.logger.Info("reading log file", "path", s.path)
		return f, nil
	}

	pr, pw := io.Pipe()
	subCtx, cancel := context.WithCancel(ctx)
	go s.tail(subCtx, f, pw)

	s.logger.Info("tailing file", "path", s.path)
	return &followStream{PipeReader: pr, cancel: cancel}, nil
}

func (s *Source) tail(ctx context.Context, f *os.File, pw *io.PipeWriter) {
	defer f.Close()
	defer pw.Close()

	reader := bufio.NewReader(f)
	var partial []byte
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		partial = append(partial, line...)
		if err != nil {
			// No complete line yet, poll.
			time.Sleep(pollInterval)
			info, serr := f.Stat()
			if serr != nil {
				continue
			}
			pos, _ := f.Seek(0, io.SeekCurrent)
			if info.Size() < pos {
				s.logger.Info("file truncated, rewinding", "path", s.path)
				f.Seek(0, io.SeekStart)
				reader.Reset(f)
				partial = partial[:0]
			}
			continue
		}

		if _, err := pw.Write(partial); err != nil {
			return
		}
		partial = partial[:0]
	}
}

type followStream struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (fs *followStream) Close() error {
	fs.cancel()
	return fs.PipeReader.Close()
}
