//go:build !windows

package subproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEchoRoundTrip(t *testing.T) {
	p, err := Start(context.Background(), "cat", nil, Options{Stdin: true}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop()

	r := bufio.NewReader(p.Stdout())
	for i := 0; i < 3; i++ {
		fmt.Fprintf(p.Stdin(), "line %d\n", i)
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if want := fmt.Sprintf("line %d\n", i); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if err := p.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
	if !p.Exited() {
		t.Error("expected process to have exited")
	}
}

func TestStdoutDrainedBeforeEOF(t *testing.T) {
	p, err := Start(context.Background(), "sh", []string{"-c", "printf 'a\\nb\\nc\\n'"}, Options{}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	data, err := io.ReadAll(p.Stdout())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "a\nb\nc\n" {
		t.Errorf("got %q", data)
	}
	if err := p.Wait(); err != nil {
		t.Errorf("wait: %v", err)
	}
}

func TestNonZeroExit(t *testing.T) {
	p, err := Start(context.Background(), "sh", []string{"-c", "exit 3"}, Options{}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	io.Copy(io.Discard, p.Stdout())

	err = p.Wait()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("code: got %d, want 3", exitErr.Code)
	}
}

func TestStopEscalatesToSignal(t *testing.T) {
	// Ignores stdin EOF; only a signal ends it.
	p, err := Start(context.Background(), "sleep", []string{"30"}, Options{Stdin: true, GracePeriod: 50 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	start := time.Now()
	p.Stop()
	if !p.Exited() {
		t.Fatal("expected process to have exited")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("stop took too long: %v", time.Since(start))
	}
}

func TestContextCancelKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := Start(ctx, "sleep", []string{"30"}, Options{GracePeriod: 50 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child still running after cancel")
	}
	if _, err := io.ReadAll(p.Stdout()); err != nil {
		t.Errorf("stdout should end cleanly: %v", err)
	}
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), "/nonexistent/droidsym-test-binary", nil, Options{}, testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
}
