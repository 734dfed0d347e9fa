// Package presets generates droidsym.yaml for known project layouts.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/modoterra/droidsym/pkg/config"
)

type cargoManifest struct {
	Package struct {
		Name     string `toml:"name"`
		Metadata struct {
			Android struct {
				Package      string   `toml:"package"`
				BuildTargets []string `toml:"build_targets"`
			} `toml:"android"`
		} `toml:"metadata"`
	} `toml:"package"`
	Lib struct {
		Name string `toml:"name"`
	} `toml:"lib"`
}

// GenerateCargo creates a config for the Rust Android crate at root from
// its Cargo.toml.
func GenerateCargo(root string) (*config.Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	path := filepath.Join(absRoot, "Cargo.toml")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s does not appear to be a cargo project (no Cargo.toml)", absRoot)
	}

	var m cargoManifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}

	c := config.Default()

	if pkg := m.Package.Metadata.Android.Package; pkg != "" {
		c.Package = pkg
	}
	if len(m.Package.Metadata.Android.BuildTargets) > 0 {
		c.Resolver.Target = m.Package.Metadata.Android.BuildTargets[0]
	}

	// cargo names the cdylib after the lib target, or the package with dashes
	// turned into underscores.
	lib := m.Lib.Name
	if lib == "" {
		lib = strings.ReplaceAll(m.Package.Name, "-", "_")
	}
	if lib != "" {
		c.Resolver.Lib = filepath.Join(absRoot, "target", c.Resolver.Target, "debug", "lib"+lib+".so")
	}

	return c, nil
}
