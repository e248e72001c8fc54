// Package workspace manages the build directory hierarchy.
//
// Directory layout:
//
//	<root>/<target>-<version>/          # source checkout
//	<root>/<target>-<version>/build/    # out-of-tree build dir (CMake)
//	<root>/binaries/<target>-<version>/ # collected, executable artifacts
//
// Paths are computed deterministically from target name and version,
// so distinct runs never collide.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRoot is where builds land when no directory is configured.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bitcoin_builds"
	}
	return filepath.Join(home, "Downloads", "bitcoin_builds")
}

// CleanVersion strips the leading "v" from a release tag for use in
// directory names ("v25.0" → "25.0").
func CleanVersion(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// Layout resolves paths under one build root.
type Layout struct {
	Root string
}

// SourceDir is the checkout directory for a target at a version.
func (l Layout) SourceDir(target, version string) string {
	return filepath.Join(l.Root, target+"-"+CleanVersion(version))
}

// OutputDir is where collected binaries for a build land.
func (l Layout) OutputDir(target, version string) string {
	return filepath.Join(l.Root, "binaries", target+"-"+CleanVersion(version))
}

// EnsureRoot creates the build root if needed.
func (l Layout) EnsureRoot() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	return nil
}

// Collected describes one previously collected build output.
type Collected struct {
	Name     string // "<target>-<version>"
	Dir      string
	Binaries []string
}

// ListCollected returns the collected build outputs under the root,
// for the status command. A missing binaries/ directory is an empty
// list, not an error.
func (l Layout) ListCollected() ([]Collected, error) {
	base := filepath.Join(l.Root, "binaries")
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read binaries dir: %w", err)
	}
	var out []Collected
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(base, e.Name())
		c := Collected{Name: e.Name(), Dir: dir}
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, f := range files {
			if !f.IsDir() {
				c.Binaries = append(c.Binaries, f.Name())
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// CopyFile copies src to dst, creating dst with the given mode.
func CopyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// O_CREATE only applies mode to new files, and through the umask;
	// chmod makes it stick for overwrites too.
	return os.Chmod(dst, mode)
}
