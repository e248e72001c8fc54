package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, ".bitforge")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileIsNil(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != nil {
		t.Errorf("settings = %+v, want nil", s)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, `
build_dir: /builds
jobs: 6
aggressive: true
allow_unverified: true
versions:
  bitcoin: v25.0
  electrs: v0.10.9
`)
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DefaultBuildDir() != "/builds" {
		t.Errorf("BuildDir = %q", s.DefaultBuildDir())
	}
	if s.DefaultJobs() != 6 {
		t.Errorf("Jobs = %d", s.DefaultJobs())
	}
	if !s.DefaultAggressive() || !s.DefaultAllowUnverified() {
		t.Error("boolean defaults not parsed")
	}
	if s.PinnedVersion("bitcoin") != "v25.0" || s.PinnedVersion("electrs") != "v0.10.9" {
		t.Errorf("versions = %v", s.Versions)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "build_dir: [unterminated")
	if _, err := Load(root); err == nil {
		t.Error("expected error for malformed settings")
	}
}

// TestNilSettingsAccessors: every accessor is safe on nil so callers
// never branch on whether a settings file existed.
func TestNilSettingsAccessors(t *testing.T) {
	var s *Settings
	if s.DefaultBuildDir() != "" {
		t.Error("DefaultBuildDir on nil")
	}
	if s.DefaultJobs() != 0 {
		t.Error("DefaultJobs on nil")
	}
	if s.DefaultAggressive() || s.DefaultAllowUnverified() {
		t.Error("boolean accessors on nil")
	}
	if s.PinnedVersion("bitcoin") != "" {
		t.Error("PinnedVersion on nil")
	}
}

func TestLoadPartialSettings(t *testing.T) {
	root := t.TempDir()
	writeSettings(t, root, "jobs: 2\n")
	s, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DefaultJobs() != 2 {
		t.Errorf("Jobs = %d, want 2", s.DefaultJobs())
	}
	if s.DefaultBuildDir() != "" || s.DefaultAggressive() {
		t.Error("unset fields must keep zero values")
	}
	if s.PinnedVersion("bitcoin") != "" {
		t.Error("PinnedVersion without a versions map")
	}
}
