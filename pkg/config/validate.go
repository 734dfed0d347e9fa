package config

import "fmt"

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("color must be auto, always, or never; got %q", c.Color))
	}

	if c.Follow && (c.Input == "" || c.Input == "-") {
		errs = append(errs, fmt.Errorf("follow requires input to be a file"))
	}

	if c.Resolver.ResponseLines < 0 {
		errs = append(errs, fmt.Errorf("resolver.response_lines must not be negative, got %d", c.Resolver.ResponseLines))
	}
	if len(c.Resolver.Args) > 0 && c.Resolver.Path == "" {
		errs = append(errs, fmt.Errorf("resolver.args requires resolver.path"))
	}

	if c.Device.Serial != "" && c.Input != "" {
		errs = append(errs, fmt.Errorf("device.serial has no effect when input is set"))
	}

	return errs
}
