// Package config loads bitforge settings from ~/.bitforge/settings.yaml.
//
// Settings are defaults only: every field can be overridden per
// invocation by a build flag. A missing file is not an error and all
// accessors are safe on a nil *Settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds persisted defaults for the build command.
type Settings struct {
	// BuildDir is the workspace root for checkouts and binaries.
	BuildDir string `yaml:"build_dir"`
	// Jobs is the default compile parallelism; 0 means all cores.
	Jobs int `yaml:"jobs"`
	// Aggressive enables the O3+LTO tier by default (still gated by
	// the pre-flight confirmation).
	Aggressive bool `yaml:"aggressive"`
	// AllowUnverified pre-grants the integrity-mismatch override.
	AllowUnverified bool `yaml:"allow_unverified"`
	// Versions pins upstream tags per target name.
	Versions map[string]string `yaml:"versions"`
}

// Load reads <root>/.bitforge/settings.yaml. Returns nil (not an
// error) if the file does not exist.
func Load(root string) (*Settings, error) {
	path := filepath.Join(root, ".bitforge", "settings.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &s, nil
}

// LoadHome reads settings from the user's home directory. Absent home
// or file both yield nil settings.
func LoadHome() (*Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	return Load(home)
}

// DefaultBuildDir returns the configured build dir, or "" when unset.
func (s *Settings) DefaultBuildDir() string {
	if s == nil {
		return ""
	}
	return s.BuildDir
}

// DefaultJobs returns the configured parallelism, or 0 when unset.
func (s *Settings) DefaultJobs() int {
	if s == nil {
		return 0
	}
	return s.Jobs
}

// DefaultAggressive reports whether the aggressive tier is on by default.
func (s *Settings) DefaultAggressive() bool {
	return s != nil && s.Aggressive
}

// DefaultAllowUnverified reports whether the integrity override is
// pre-granted.
func (s *Settings) DefaultAllowUnverified() bool {
	return s != nil && s.AllowUnverified
}

// PinnedVersion returns the pinned tag for a target, or "".
func (s *Settings) PinnedVersion(target string) string {
	if s == nil {
		return ""
	}
	return s.Versions[target]
}
