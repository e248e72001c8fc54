package builder

import (
	"fmt"
	"path/filepath"

	"bitforge/internal/buildenv"
	"bitforge/internal/command"
	"bitforge/internal/releases"
)

// Strategy is one configure-and-compile pipeline. Implementations run
// entirely through the Runner so tests can observe the exact command
// sequence without touching a real toolchain.
type Strategy interface {
	// Name identifies the build system in logs.
	Name() string
	// Preflight verifies the toolchain is usable in the composed
	// environment before any build work starts. Most strategies have
	// nothing to check.
	Preflight(r command.Runner, env *buildenv.Env) error
	// Build configures and compiles the checkout at srcDir.
	Build(r command.Runner, srcDir string, env *buildenv.Env, jobs int) error
	// Binaries returns the absolute paths the build is expected to
	// have produced under srcDir.
	Binaries(srcDir string) []string
}

// ToolchainError reports a toolchain that a strategy requires but the
// composed environment cannot resolve. Raised before any build work:
// a partial Rust build wastes significant time.
type ToolchainError struct {
	Tool   string
	Reason string
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("toolchain missing: %s not usable (%s); install it and retry", e.Tool, e.Reason)
}

// selection rules, first match wins. An explicit table instead of
// conditionals in the orchestrator: adding a build-system variant
// means adding a row, not touching orchestration code.
type rule struct {
	target  string
	matches func(version string) bool
	build   Strategy
}

func anyVersion(string) bool { return true }

var strategyRules = []rule{
	// Bitcoin Core moved from Autotools to CMake at v25.
	{target: Bitcoin.Name, matches: func(v string) bool { return releases.Major(v) >= 25 }, build: cmakeStrategy{}},
	{target: Bitcoin.Name, matches: anyVersion, build: autotoolsStrategy{}},
	{target: Electrs.Name, matches: anyVersion, build: cargoStrategy{}},
}

// SelectStrategy resolves the build pipeline for a target at a
// version from the rule table.
func SelectStrategy(target Target, version string) (Strategy, error) {
	for _, r := range strategyRules {
		if r.target == target.Name && r.matches(version) {
			return r.build, nil
		}
	}
	return nil, fmt.Errorf("no build strategy for target %q version %q", target.Name, version)
}

// bitcoinTools are the node-only binaries a Bitcoin Core build
// produces. bitcoin-util only exists in CMake-era releases.
var bitcoinTools = []string{"bitcoind", "bitcoin-cli", "bitcoin-tx", "bitcoin-wallet"}

// ---------------------------------------------------------------------------
// CMake (Bitcoin Core v25+)
// ---------------------------------------------------------------------------

type cmakeStrategy struct{}

func (cmakeStrategy) Name() string { return "cmake" }

func (cmakeStrategy) Preflight(command.Runner, *buildenv.Env) error { return nil }

// Build configures into an out-of-tree build/ directory with wallet
// and IPC disabled (node-only), then compiles with the requested
// parallelism.
func (cmakeStrategy) Build(r command.Runner, srcDir string, env *buildenv.Env, jobs int) error {
	configure := command.Spec{
		Argv: []string{"cmake", "-B", "build", "-DENABLE_WALLET=OFF", "-DENABLE_IPC=OFF"},
		Dir:  srcDir,
		Env:  env.Environ(),
	}
	if err := r.Run(configure); err != nil {
		return err
	}
	compile := command.Spec{
		Argv: []string{"cmake", "--build", "build", fmt.Sprintf("-j%d", jobs)},
		Dir:  srcDir,
		Env:  env.Environ(),
	}
	return r.Run(compile)
}

func (cmakeStrategy) Binaries(srcDir string) []string {
	bin := filepath.Join(srcDir, "build", "bin")
	out := make([]string, 0, len(bitcoinTools)+1)
	for _, name := range append(append([]string{}, bitcoinTools...), "bitcoin-util") {
		out = append(out, filepath.Join(bin, name))
	}
	return out
}

// ---------------------------------------------------------------------------
// Autotools (Bitcoin Core < v25)
// ---------------------------------------------------------------------------

type autotoolsStrategy struct{}

func (autotoolsStrategy) Name() string { return "autotools" }

func (autotoolsStrategy) Preflight(command.Runner, *buildenv.Env) error { return nil }

// Build bootstraps, configures with wallet and GUI disabled, and
// compiles in-tree.
func (autotoolsStrategy) Build(r command.Runner, srcDir string, env *buildenv.Env, jobs int) error {
	steps := []command.Spec{
		{Argv: []string{"./autogen.sh"}, Dir: srcDir, Env: env.Environ()},
		{Argv: []string{"./configure", "--disable-wallet", "--disable-gui"}, Dir: srcDir, Env: env.Environ()},
		{Argv: []string{"make", fmt.Sprintf("-j%d", jobs)}, Dir: srcDir, Env: env.Environ()},
	}
	for _, step := range steps {
		if err := r.Run(step); err != nil {
			return err
		}
	}
	return nil
}

func (autotoolsStrategy) Binaries(srcDir string) []string {
	bin := filepath.Join(srcDir, "bin")
	out := make([]string, 0, len(bitcoinTools))
	for _, name := range bitcoinTools {
		out = append(out, filepath.Join(bin, name))
	}
	return out
}

// ---------------------------------------------------------------------------
// Cargo release (electrs)
// ---------------------------------------------------------------------------

type cargoStrategy struct{}

func (cargoStrategy) Name() string { return "cargo" }

// Preflight asserts cargo and rustc resolve in the composed
// environment. cargo is load-bearing; a failing rustc probe alone is
// tolerated since cargo fronts it.
func (cargoStrategy) Preflight(r command.Runner, env *buildenv.Env) error {
	if _, err := r.Output(command.Spec{Argv: []string{"cargo", "--version"}, Env: env.Environ()}); err != nil {
		return &ToolchainError{Tool: "cargo", Reason: "not found in composed PATH"}
	}
	_, _ = r.Output(command.Spec{Argv: []string{"rustc", "--version"}, Env: env.Environ()})
	return nil
}

func (cargoStrategy) Build(r command.Runner, srcDir string, env *buildenv.Env, jobs int) error {
	return r.Run(command.Spec{
		Argv: []string{"cargo", "build", "--release", "--jobs", fmt.Sprintf("%d", jobs)},
		Dir:  srcDir,
		Env:  env.Environ(),
	})
}

func (cargoStrategy) Binaries(srcDir string) []string {
	return []string{filepath.Join(srcDir, "target", "release", "electrs")}
}
