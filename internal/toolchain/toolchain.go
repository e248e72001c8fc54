// Package toolchain inventories the build dependencies bitforge needs
// from the host: the Homebrew package set the two upstreams build
// against, and a working Rust toolchain for the indexer.
package toolchain

import (
	"fmt"

	"bitforge/internal/command"
	"bitforge/internal/event"
)

// BrewPackages is the Homebrew package set both builds draw on.
var BrewPackages = []string{
	"automake", "libtool", "boost", "pkg-config",
	"miniupnpc", "zeromq", "sqlite", "python",
	"cmake", "llvm", "libevent", "rocksdb", "rust", "git",
}

// Checker probes and repairs the host toolchain through a Runner.
type Checker struct {
	Brew   string // path to the brew binary; "" when Homebrew is absent
	Runner command.Runner
	Sink   event.Sink
}

// NewChecker wires a checker emitting into sink.
func NewChecker(brew string, runner command.Runner, sink event.Sink) *Checker {
	if sink == nil {
		sink = event.Discard
	}
	return &Checker{Brew: brew, Runner: runner, Sink: sink}
}

// Missing returns the subset of pkgs not installed, determined by
// `brew list <pkg>` per package. Errors only when Homebrew itself is
// absent.
func (c *Checker) Missing(pkgs []string) ([]string, error) {
	if c.Brew == "" {
		return nil, fmt.Errorf("homebrew not found; install it from https://brew.sh first")
	}
	var missing []string
	for _, pkg := range pkgs {
		_, err := c.Runner.Output(command.Spec{Argv: []string{c.Brew, "list", pkg}})
		if err != nil {
			c.Sink.Emit(event.Line("  missing: " + pkg))
			missing = append(missing, pkg)
		} else {
			c.Sink.Emit(event.Line("  ok:      " + pkg))
		}
	}
	return missing, nil
}

// Install installs each package, streaming brew's output. Stops at the
// first failure.
func (c *Checker) Install(pkgs []string) error {
	if c.Brew == "" {
		return fmt.Errorf("homebrew not found; install it from https://brew.sh first")
	}
	for _, pkg := range pkgs {
		c.Sink.Emit(event.Line("installing " + pkg + "..."))
		if err := c.Runner.Run(command.Spec{Argv: []string{c.Brew, "install", pkg}}); err != nil {
			return fmt.Errorf("install %s: %w", pkg, err)
		}
	}
	return nil
}

// RustInfo reports the probed Rust toolchain versions.
type RustInfo struct {
	Cargo string
	Rustc string
}

// Rust probes cargo and rustc in env. cargo missing is an error (the
// indexer build cannot start without it); rustc is reported when
// resolvable.
func (c *Checker) Rust(env []string) (RustInfo, error) {
	var info RustInfo
	cargo, err := c.Runner.Output(command.Spec{Argv: []string{"cargo", "--version"}, Env: env})
	if err != nil {
		return info, fmt.Errorf("cargo not found in PATH; install rust (brew install rust) and retry")
	}
	info.Cargo = cargo
	if rustc, err := c.Runner.Output(command.Spec{Argv: []string{"rustc", "--version"}, Env: env}); err == nil {
		info.Rustc = rustc
	}
	return info, nil
}
