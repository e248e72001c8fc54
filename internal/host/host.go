// Package host probes the machine bitforge is running on.
//
// Everything here is detected once at startup and treated as immutable
// for the life of the process: CPU architecture, the Homebrew
// installation (if any), and a human-readable host summary for the
// status command.
package host

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Architecture is the host CPU family.
type Architecture int

const (
	Unknown Architecture = iota
	AppleSilicon
	Intel
)

// String returns the name used in logs and the status display.
func (a Architecture) String() string {
	switch a {
	case AppleSilicon:
		return "apple_silicon"
	case Intel:
		return "intel"
	default:
		return "unknown"
	}
}

// ArchFromMachine maps a machine/GOARCH string to an Architecture.
// Pure; DetectArchitecture feeds it runtime.GOARCH.
func ArchFromMachine(machine string) Architecture {
	switch machine {
	case "arm64":
		return AppleSilicon
	case "amd64", "x86_64":
		return Intel
	default:
		return Unknown
	}
}

// DetectArchitecture returns the architecture of the running process.
func DetectArchitecture() Architecture {
	return ArchFromMachine(runtime.GOARCH)
}

// brewCandidates are the two well-known Homebrew install locations
// (Apple Silicon and Intel Macs respectively).
var brewCandidates = []string{
	"/opt/homebrew/bin/brew",
	"/usr/local/bin/brew",
}

// FindBrew returns the path to the brew binary, or "" if Homebrew is
// not installed in either well-known location.
func FindBrew() string {
	for _, p := range brewCandidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// BrewPrefix derives the Homebrew prefix from the brew binary path.
// Returns "" for an empty brew path (Homebrew absent).
func BrewPrefix(brew string) string {
	if brew == "" {
		return ""
	}
	// <prefix>/bin/brew → <prefix>
	return filepath.Dir(filepath.Dir(brew))
}

// Summary describes the host for the status command.
type Summary struct {
	OS         string
	Arch       Architecture
	BrewPrefix string
	CPUs       int
}

// Describe collects the current host summary.
func Describe() Summary {
	return Summary{
		OS:         runtime.GOOS,
		Arch:       DetectArchitecture(),
		BrewPrefix: BrewPrefix(FindBrew()),
		CPUs:       runtime.NumCPU(),
	}
}

// String renders the summary as the multi-line status block.
func (s Summary) String() string {
	brew := s.BrewPrefix
	if brew == "" {
		brew = "not found"
	}
	return fmt.Sprintf("OS:            %s\nArchitecture:  %s\nHomebrew:      %s\nCPU cores:     %d",
		s.OS, s.Arch, brew, s.CPUs)
}
