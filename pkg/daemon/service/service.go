// Package service manages a systemd user unit running droidsym serve.
package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/modoterra/droidsym/pkg/transport/uds"
)

const unitName = "droidsym.service"

// Unit describes the service to install.
type Unit struct {
	Binary string            // absolute path to droidsym
	Config string            // absolute path to droidsym.yaml
	Env    map[string]string // toolchain variables the user session lacks
}

// UnitContents returns the systemd unit file contents for u.
func UnitContents(u Unit) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	b.WriteString("Description=droidsym crash symbolication stream\n")
	b.WriteString("\n[Service]\n")
	b.WriteString("Type=notify\n")

	keys := make([]string, 0, len(u.Env))
	for k := range u.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "Environment=%q\n", k+"="+u.Env[k])
	}

	start := u.Binary + " serve"
	if u.Config != "" {
		start += " --config " + u.Config
	}
	fmt.Fprintf(&b, "ExecStart=%s\n", start)
	b.WriteString("Restart=on-failure\n")
	b.WriteString("RestartSec=5\n")
	b.WriteString("\n[Install]\n")
	b.WriteString("WantedBy=default.target\n")
	return b.String()
}

// UnitPath returns the path to the systemd user unit file.
func UnitPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user", unitName), nil
}

// Install writes the unit file, reloads systemd, and enables+starts the service.
func Install(u Unit) error {
	if !filepath.IsAbs(u.Binary) {
		return fmt.Errorf("binary path must be absolute: %s", u.Binary)
	}

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	if err := os.WriteFile(unitPath, []byte(UnitContents(u)), 0o644); err != nil {
		return fmt.Errorf("cannot write unit file: %w", err)
	}

	if err := systemctl("daemon-reload"); err != nil {
		return err
	}
	return systemctl("enable", "--now", unitName)
}

// Uninstall stops+disables the service, removes the unit file, and reloads systemd.
func Uninstall() error {
	// Best-effort stop and disable; ignore errors if not running.
	_ = systemctl("stop", unitName)
	_ = systemctl("disable", unitName)

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove unit file: %w", err)
	}

	return systemctl("daemon-reload")
}

// Status returns a human-readable status string.
func Status(socketPath string) string {
	var lines []string

	lines = append(lines, "socket: "+socketState(socketPath)+" ("+socketPath+")")

	unitPath, err := UnitPath()
	if err == nil {
		if _, statErr := os.Stat(unitPath); statErr == nil {
			out, runErr := exec.Command("systemctl", "--user", "is-active", unitName).Output()
			state := strings.TrimSpace(string(out))
			if runErr != nil && state == "" {
				state = "unknown"
			}
			lines = append(lines, "systemd user service: "+state)
		} else {
			lines = append(lines, "systemd user service: not installed")
		}
	}

	return strings.Join(lines, "\n")
}

// socketState pings the server behind socketPath.
func socketState(socketPath string) string {
	if _, err := os.Stat(socketPath); err != nil {
		return "inactive"
	}
	client, err := uds.Dial(socketPath)
	if err != nil {
		return "stale"
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Request(ctx, uds.MethodPing, nil)
	if err != nil {
		return "unresponsive"
	}
	var pong uds.PingResponse
	if err := resp.UnmarshalData(&pong); err != nil || !pong.Pong {
		return "unresponsive"
	}
	return "active, watching " + pong.Package
}

func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl --user %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
