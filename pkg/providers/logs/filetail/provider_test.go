package filetail

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestReadWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.txt")
	content := "06-01 12:00:00.000 1 2 F app: one\n06-01 12:00:00.001 1 2 F app: two\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := New(path, false, testLogger()).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != content {
		t.Errorf("got %q", data)
	}
}

func TestFollowAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.txt")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := New(path, true, testLogger()).Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	lines := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	expect := func(want string) {
		t.Helper()
		select {
		case got := <-lines:
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	expect("first")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	// A line written in two parts is delivered whole.
	f.WriteString("sec")
	f.Sync()
	time.Sleep(2 * pollInterval)
	f.WriteString("ond\n")
	f.Close()
	expect("second")

	rc.Close()
	select {
	case _, ok := <-lines:
		if ok {
			t.Error("unexpected line after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after close")
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), false, testLogger()).Open(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStdinName(t *testing.T) {
	if New(Stdin, false, testLogger()).Name() != "stdin" {
		t.Error("expected stdin source")
	}
}
