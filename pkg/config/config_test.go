package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseValidConfig(t *testing.T) {
	t.Setenv("DROIDSYM_TEST_NDK", "/opt/ndk")
	yaml := `
version: 1
package: com.example.app
verbosity: 2
time: true
device:
  serial: emulator-5554
  logcat_args: ["-b", "crash", "-v", "threadtime"]
resolver:
  path: "${DROIDSYM_TEST_NDK}/bin/llvm-addr2line"
  args: ["-f", "-e", "{lib}"]
  response_lines: 2
  lib: ./target/aarch64-linux-android/release/libmain.so
  demangle: false
`
	c, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if c.Package != "com.example.app" || c.Verbosity != 2 || !c.Time || c.Raw {
		t.Errorf("top-level fields: %+v", c)
	}
	if c.Resolver.Path != "/opt/ndk/bin/llvm-addr2line" {
		t.Errorf("path interpolation: got %q", c.Resolver.Path)
	}
	if c.Resolver.Demangle {
		t.Error("demangle: want false")
	}
	if !c.Resolver.Cache {
		t.Error("cache: omitted fields keep their defaults")
	}
	if c.Resolver.Target != DefaultTarget {
		t.Errorf("target: got %q", c.Resolver.Target)
	}
	if diff := cmp.Diff([]string{"-b", "crash", "-v", "threadtime"}, c.Device.LogcatArgs); diff != "" {
		t.Errorf("logcat args (-want +got):\n%s", diff)
	}
	if errs := Validate(c); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("verbosity: [")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	c := Default()
	c.Package = "com.example.app"
	c.Raw = true
	if err := Save(c, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FilePath != path {
		t.Errorf("file path: got %q", loaded.FilePath)
	}
	loaded.FilePath = ""
	if diff := cmp.Diff(c, loaded); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalize(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c := &Config{Verbosity: 7}
	c.Normalize(logger)
	if c.Verbosity != 0 {
		t.Errorf("verbosity: got %d, want 0", c.Verbosity)
	}
	if c.Package != DefaultPackage {
		t.Errorf("package: got %q", c.Package)
	}
	if c.Resolver.Target != DefaultTarget || c.Color != ColorAuto {
		t.Errorf("defaults not applied: %+v", c)
	}
	out := buf.String()
	if !strings.Contains(out, "verbosity should be in the range 0..3") || !strings.Contains(out, "no package name provided") {
		t.Errorf("expected warnings, got %q", out)
	}

	c = &Config{Verbosity: -1, Package: "x"}
	c.Normalize(logger)
	if c.Verbosity != 0 {
		t.Errorf("negative verbosity: got %d", c.Verbosity)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		v    int
		want slog.Level
	}{
		{0, slog.LevelError},
		{1, slog.LevelWarn},
		{2, slog.LevelInfo},
		{3, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := LogLevel(tt.v); got != tt.want {
			t.Errorf("LogLevel(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version must be 1"},
		{"color", func(c *Config) { c.Color = "rainbow" }, "color must be"},
		{"follow stdin", func(c *Config) { c.Follow = true; c.Input = "-" }, "follow requires input"},
		{"follow no input", func(c *Config) { c.Follow = true }, "follow requires input"},
		{"response lines", func(c *Config) { c.Resolver.ResponseLines = -1 }, "response_lines"},
		{"args without path", func(c *Config) { c.Resolver.Args = []string{"-e"} }, "requires resolver.path"},
		{"serial with input", func(c *Config) { c.Input = "crash.txt"; c.Device.Serial = "x" }, "no effect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assertHasError(t, Validate(c), tt.substr)
		})
	}
	if errs := Validate(Default()); len(errs) != 0 {
		t.Errorf("defaults should validate: %v", errs)
	}
}

func fakeEnv(vars map[string]string, existing ...string) Env {
	return Env{
		LookupEnv: func(k string) (string, bool) {
			v, ok := vars[k]
			return v, ok
		},
		Getwd: func() (string, error) { return "/work/app", nil },
		Exists: func(p string) bool {
			for _, e := range existing {
				if e == p {
					return true
				}
			}
			return false
		},
		GOOS: "linux",
	}
}

func TestResolvePathsFromEnv(t *testing.T) {
	prefixed := "/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin/aarch64-linux-android-addr2line"
	env := fakeEnv(map[string]string{EnvSDKRoot: "/sdk", EnvNDKHome: "/ndk"}, prefixed)

	p, err := Default().ResolvePaths(env)
	if err != nil {
		t.Fatal(err)
	}
	want := Paths{
		ADB:           "/sdk/platform-tools/adb",
		Resolver:      prefixed,
		ResolverArgs:  []string{"-f", "-C", "-e", "/work/app/target/aarch64-linux-android/debug/libmain.so"},
		ResponseLines: 2,
		Lib:           "/work/app/target/aarch64-linux-android/debug/libmain.so",
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}

func TestResolvePathsLLVMFallback(t *testing.T) {
	llvm := "/ndk/toolchains/llvm/prebuilt/linux-x86_64/bin/llvm-addr2line"
	env := fakeEnv(map[string]string{EnvSDKRoot: "/sdk", EnvNDKHome: "/ndk"}, llvm)
	p, err := Default().ResolvePaths(env)
	if err != nil {
		t.Fatal(err)
	}
	if p.Resolver != llvm {
		t.Errorf("resolver: got %q", p.Resolver)
	}
}

func TestResolvePathsWindows(t *testing.T) {
	env := fakeEnv(map[string]string{EnvSDKRoot: `C:\sdk`, EnvNDKHome: `C:\ndk`})
	env.GOOS = "windows"
	p, err := Default().ResolvePaths(env)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(p.ADB, "adb.exe") {
		t.Errorf("adb: got %q", p.ADB)
	}
	if !strings.Contains(p.Resolver, "windows-x86_64") || !strings.HasSuffix(p.Resolver, "aarch64-linux-android-addr2line.exe") {
		t.Errorf("resolver: got %q", p.Resolver)
	}
}

func TestResolvePathsMissingEnv(t *testing.T) {
	_, err := Default().ResolvePaths(fakeEnv(nil))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, v := range []string{EnvSDKRoot, EnvNDKHome} {
		if !strings.Contains(err.Error(), v) {
			t.Errorf("error should mention %s: %v", v, err)
		}
	}
}

func TestResolvePathsInputSkipsSDK(t *testing.T) {
	c := Default()
	c.Input = "crash.txt"
	p, err := c.ResolvePaths(fakeEnv(map[string]string{EnvNDKHome: "/ndk"}))
	if err != nil {
		t.Fatalf("SDK should not be required for file input: %v", err)
	}
	if p.ADB != "" {
		t.Errorf("adb: got %q", p.ADB)
	}
}

func TestResolvePathsExplicit(t *testing.T) {
	c := Default()
	c.Device.ADB = "/usr/bin/adb"
	c.Resolver.Path = "/usr/bin/llvm-addr2line"
	c.Resolver.Args = []string{"--functions", "--obj={lib}"}
	c.Resolver.Lib = "/tmp/libfoo.so"

	p, err := c.ResolvePaths(fakeEnv(nil))
	if err != nil {
		t.Fatalf("explicit paths need no env: %v", err)
	}
	if diff := cmp.Diff([]string{"--functions", "--obj=/tmp/libfoo.so"}, p.ResolverArgs); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if p.ResponseLines != 1 {
		t.Errorf("custom args default to one response line, got %d", p.ResponseLines)
	}
}

func TestHostTag(t *testing.T) {
	if HostTag("darwin") != "darwin-x86_64" || HostTag("linux") != "linux-x86_64" {
		t.Error("unexpected host tag")
	}
}

func TestOSEnv(t *testing.T) {
	env := OSEnv()
	if !env.Exists(os.TempDir()) {
		t.Error("temp dir should exist")
	}
}

func assertHasError(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, e := range errs {
		if strings.Contains(e.Error(), substr) {
			return
		}
	}
	t.Errorf("expected error containing %q, got: %v", substr, errs)
}
