package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables that locate the Android toolchain.
const (
	EnvSDKRoot = "ANDROID_SDK_ROOT"
	EnvNDKHome = "ANDROID_NDK_HOME"
)

// LibPlaceholder in resolver args is replaced by the library path.
const LibPlaceholder = "{lib}"

// Env is the part of the process environment path resolution depends on.
type Env struct {
	LookupEnv func(string) (string, bool)
	Getwd     func() (string, error)
	Exists    func(string) bool
	GOOS      string
}

// OSEnv returns the real process environment.
func OSEnv() Env {
	return Env{
		LookupEnv: os.LookupEnv,
		Getwd:     os.Getwd,
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		GOOS: runtime.GOOS,
	}
}

// Paths are the external programs and files a run needs.
type Paths struct {
	ADB           string // empty when logs come from Input
	Resolver      string
	ResolverArgs  []string
	ResponseLines int
	Lib           string
}

// ResolvePaths fills in every path the config leaves empty from the SDK and
// NDK environment variables. A variable is only required when a path
// depends on it.
func (c *Config) ResolvePaths(env Env) (Paths, error) {
	p, err := c.ResolverPaths(env)
	if c.Input == "" {
		adb, adbErr := c.ADBPath(env)
		p.ADB = adb
		err = errors.Join(adbErr, err)
	}
	return p, err
}

// ADBPath returns the configured adb, or the one in the SDK platform-tools.
func (c *Config) ADBPath(env Env) (string, error) {
	if c.Device.ADB != "" {
		return c.Device.ADB, nil
	}
	sdk, ok := env.LookupEnv(EnvSDKRoot)
	if !ok || sdk == "" {
		return "", fmt.Errorf("%s env var not set", EnvSDKRoot)
	}
	return filepath.Join(sdk, "platform-tools", "adb"+exeSuffix(env.GOOS)), nil
}

// ResolverPaths resolves everything needed to start the resolver, leaving
// ADB empty.
func (c *Config) ResolverPaths(env Env) (Paths, error) {
	var errs []error
	p := Paths{
		Resolver:      c.Resolver.Path,
		ResponseLines: c.Resolver.ResponseLines,
		Lib:           c.Resolver.Lib,
	}

	target := c.Resolver.Target
	if target == "" {
		target = DefaultTarget
	}
	if p.Resolver == "" {
		ndk, ok := env.LookupEnv(EnvNDKHome)
		if !ok || ndk == "" {
			errs = append(errs, fmt.Errorf("%s env var not set", EnvNDKHome))
		} else {
			p.Resolver = ndkAddr2Line(ndk, env.GOOS, target, env.Exists)
		}
	}

	if p.Lib == "" {
		cwd, err := env.Getwd()
		if err != nil {
			errs = append(errs, fmt.Errorf("working directory: %w", err))
		} else {
			p.Lib = filepath.Join(cwd, "target", target, "debug", "libmain.so")
		}
	}

	if len(c.Resolver.Args) == 0 {
		// addr2line answers each address with a function line and a file:line line.
		p.ResolverArgs = []string{"-f", "-C", "-e", p.Lib}
		if p.ResponseLines == 0 {
			p.ResponseLines = 2
		}
	} else {
		for _, a := range c.Resolver.Args {
			p.ResolverArgs = append(p.ResolverArgs, strings.ReplaceAll(a, LibPlaceholder, p.Lib))
		}
	}
	if p.ResponseLines == 0 {
		p.ResponseLines = 1
	}

	return p, errors.Join(errs...)
}

func exeSuffix(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ""
}

// ndkAddr2Line prefers the target-prefixed binary of older NDKs and falls
// back to llvm-addr2line, which is all newer NDKs ship.
func ndkAddr2Line(ndk, goos, target string, exists func(string) bool) string {
	exe := exeSuffix(goos)
	bin := filepath.Join(ndk, "toolchains", "llvm", "prebuilt", HostTag(goos), "bin")
	prefixed := filepath.Join(bin, target+"-addr2line"+exe)
	if exists(prefixed) {
		return prefixed
	}
	llvm := filepath.Join(bin, "llvm-addr2line"+exe)
	if exists(llvm) {
		return llvm
	}
	return prefixed
}

// HostTag returns the NDK prebuilt directory name for goos.
func HostTag(goos string) string {
	switch goos {
	case "windows":
		return "windows-x86_64"
	case "darwin":
		return "darwin-x86_64"
	default:
		return "linux-x86_64"
	}
}
