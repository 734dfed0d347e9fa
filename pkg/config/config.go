// Package config loads droidsym.yaml and resolves Android toolchain paths.
package config

// DefaultPackage is watched when no package name is configured.
const DefaultPackage = "co.realfit.agdkwinitwgpu"

// DefaultTarget is the Rust target triple of the device build.
const DefaultTarget = "aarch64-linux-android"

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "droidsym.yaml"

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config represents a droidsym.yaml configuration file.
type Config struct {
	Version   int      `yaml:"version"             json:"version"`
	Package   string   `yaml:"package"             json:"package"`
	Verbosity int      `yaml:"verbosity"           json:"verbosity"`
	Raw       bool     `yaml:"raw,omitempty"       json:"raw,omitempty"`  // only resolved stack frames
	Time      bool     `yaml:"time,omitempty"      json:"time,omitempty"` // prefix lines with the logcat timestamp
	Color     string   `yaml:"color,omitempty"     json:"color,omitempty"`
	Journal   bool     `yaml:"journal,omitempty"   json:"journal,omitempty"`
	Input     string   `yaml:"input,omitempty"     json:"input,omitempty"` // file or "-" instead of adb
	Follow    bool     `yaml:"follow,omitempty"    json:"follow,omitempty"`
	Socket    string   `yaml:"socket,omitempty"    json:"socket,omitempty"`
	Device    Device   `yaml:"device"              json:"device"`
	Resolver  Resolver `yaml:"resolver"            json:"resolver"`

	// FilePath is where the config was loaded from; empty for defaults.
	FilePath string `yaml:"-" json:"-"`
}

// Device configures the log capture.
type Device struct {
	ADB        string   `yaml:"adb,omitempty"         json:"adb,omitempty"`
	Serial     string   `yaml:"serial,omitempty"      json:"serial,omitempty"`
	LogcatArgs []string `yaml:"logcat_args,omitempty" json:"logcat_args,omitempty"`
}

// Resolver configures the symbol resolver process.
type Resolver struct {
	Path          string   `yaml:"path,omitempty"           json:"path,omitempty"`
	Args          []string `yaml:"args,omitempty"           json:"args,omitempty"` // "{lib}" expands to Lib
	ResponseLines int      `yaml:"response_lines,omitempty" json:"response_lines,omitempty"`
	Lib           string   `yaml:"lib,omitempty"            json:"lib,omitempty"`
	Target        string   `yaml:"target,omitempty"         json:"target,omitempty"`
	Demangle      bool     `yaml:"demangle"                 json:"demangle"`
	Cache         bool     `yaml:"cache"                    json:"cache"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Package: DefaultPackage,
		Color:   ColorAuto,
		Resolver: Resolver{
			Target:   DefaultTarget,
			Demangle: true,
			Cache:    true,
		},
	}
}
