// Package buildenv composes the environment a build subprocess runs in.
//
// Compose returns a fresh overlay every time and never writes back into
// the process environment: the only consumer of a composed Env is the
// specific subprocess invocation it was built for. PATH is synthesized
// from well-known toolchain roots (existence-filtered), toolchain bin
// directories, and the inherited tail, deduplicated in first-seen
// order.
package buildenv

import (
	"os"
	"path/filepath"
	"strings"

	"bitforge/internal/host"
)

// Tier selects the optimization bundle applied to a build.
type Tier int

const (
	// Standard is the safe default: -O2 class flags only.
	Standard Tier = iota
	// Aggressive adds -O3, LTO, and wider instruction-set targets.
	// Higher risk: builds may fail or binaries may misbehave, so the
	// caller must confirm before composing at this tier.
	Aggressive
)

func (t Tier) String() string {
	if t == Aggressive {
		return "aggressive (O3 + LTO)"
	}
	return "standard (O2)"
}

// Env is an ordered set of environment variables. Insertion order is
// preserved so logs and Environ output are deterministic.
type Env struct {
	keys []string
	vals map[string]string
}

// NewEnv returns an Env seeded from base ("KEY=VALUE" pairs, typically
// os.Environ()). Later duplicates overwrite earlier values in place.
func NewEnv(base []string) *Env {
	e := &Env{vals: make(map[string]string, len(base))}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		e.Set(k, v)
	}
	return e
}

// Set assigns a variable, preserving the position of existing keys.
func (e *Env) Set(key, value string) {
	if _, ok := e.vals[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.vals[key] = value
}

// Get returns the value for key, or "" when unset.
func (e *Env) Get(key string) string {
	return e.vals[key]
}

// Environ renders the variables as "KEY=VALUE" pairs for os/exec.
func (e *Env) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.vals[k])
	}
	return out
}

// Composer builds Env overlays for a fixed host configuration.
// Zero-value fields fall back to live host probing in NewComposer.
type Composer struct {
	Arch       host.Architecture
	BrewPrefix string // "" when Homebrew is absent
	Home       string // user home, for ~/.cargo/bin

	// Base is the inherited environment ("KEY=VALUE" pairs). Copied,
	// never mutated.
	Base []string

	// DirExists reports whether a directory is present on disk.
	// Injected so tests can compose against a synthetic filesystem.
	DirExists func(string) bool
}

// NewComposer probes the live host.
func NewComposer() *Composer {
	home, _ := os.UserHomeDir()
	return &Composer{
		Arch:       host.DetectArchitecture(),
		BrewPrefix: host.BrewPrefix(host.FindBrew()),
		Home:       home,
		Base:       os.Environ(),
		DirExists: func(p string) bool {
			fi, err := os.Stat(p)
			return err == nil && fi.IsDir()
		},
	}
}

// wellKnownRoots are the fixed search-path entries, in priority order.
// Toolchain installs come before the system tail.
func (c *Composer) wellKnownRoots() []string {
	var roots []string
	if c.BrewPrefix != "" {
		roots = append(roots, filepath.Join(c.BrewPrefix, "bin"))
	}
	roots = append(roots,
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
		"/usr/sbin",
		"/sbin",
	)
	return roots
}

// llvmPrefixes are candidate LLVM install prefixes, checked in order.
func (c *Composer) llvmPrefixes() []string {
	var prefixes []string
	if c.BrewPrefix != "" {
		prefixes = append(prefixes, filepath.Join(c.BrewPrefix, "opt", "llvm"))
	}
	prefixes = append(prefixes,
		"/opt/homebrew/opt/llvm",
		"/usr/local/opt/llvm",
	)
	return prefixes
}

// composePath builds the PATH value: discovered toolchain directories
// first (existence-filtered, like everything synthesized here), then
// the inherited tail as-is, deduplicated preserving first-seen order.
// Recomposing with identical inputs yields an identical result.
func (c *Composer) composePath(inherited string) string {
	var components []string
	for _, root := range c.wellKnownRoots() {
		if c.DirExists(root) {
			components = append(components, root)
		}
	}

	// Cargo's user-local bin dir, when present.
	if c.Home != "" {
		cargoBin := filepath.Join(c.Home, ".cargo", "bin")
		if c.DirExists(cargoBin) {
			components = append(components, cargoBin)
		}
	}
	// LLVM front-end bin dirs, when present.
	for _, prefix := range c.llvmPrefixes() {
		bin := filepath.Join(prefix, "bin")
		if c.DirExists(bin) {
			components = append(components, bin)
		}
	}
	// Inherited PATH tail.
	components = append(components, filepath.SplitList(inherited)...)

	seen := make(map[string]bool, len(components))
	var unique []string
	for _, p := range components {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	return strings.Join(unique, string(os.PathListSeparator))
}

// cFlags returns the C/C++ compiler flag set for the architecture and
// tier. LDFLAGS is "" unless LTO is in play.
func (c *Composer) cFlags(tier Tier) (cflags, ldflags string) {
	switch c.Arch {
	case host.AppleSilicon:
		base := []string{"-mcpu=apple-m1", "-O2", "-fomit-frame-pointer", "-fno-common"}
		if tier == Aggressive {
			base = append(base, "-O3", "-flto", "-march=armv8.5-a+fp16+crypto+dotprod")
			return strings.Join(base, " "), "-flto"
		}
		return strings.Join(base, " "), ""
	case host.Intel:
		base := []string{"-march=native", "-O2", "-fomit-frame-pointer", "-fno-common"}
		if tier == Aggressive {
			base = append(base, "-O3", "-flto", "-mtune=native")
			return strings.Join(base, " "), "-flto"
		}
		return strings.Join(base, " "), ""
	default:
		return "-O2", ""
	}
}

// Compose returns a fresh environment overlay for one build
// invocation. The inherited environment is copied; the process
// environment is never touched.
func (c *Composer) Compose(tier Tier) *Env {
	env := NewEnv(c.Base)
	env.Set("PATH", c.composePath(env.Get("PATH")))

	// libclang for bindgen-style builds: first LLVM prefix present wins.
	for _, prefix := range c.llvmPrefixes() {
		if c.DirExists(prefix) {
			lib := filepath.Join(prefix, "lib")
			env.Set("LIBCLANG_PATH", lib)
			env.Set("DYLD_LIBRARY_PATH", lib)
			break
		}
	}

	cflags, ldflags := c.cFlags(tier)
	env.Set("CFLAGS", cflags)
	env.Set("CXXFLAGS", cflags)
	if ldflags != "" {
		env.Set("LDFLAGS", ldflags)
	}
	return env
}

// AddRustFlags layers the Cargo/rustc flag set for tier onto env.
// Aggressive pairs fat LTO with embed-bitcode: LTO without embedded
// bitcode produces an unusable artifact.
func AddRustFlags(env *Env, tier Tier) {
	if tier == Aggressive {
		env.Set("RUSTFLAGS", "-C opt-level=3 -C target-cpu=native")
		env.Set("CARGO_PROFILE_RELEASE_LTO", "fat")
		env.Set("CARGO_PROFILE_RELEASE_OPT_LEVEL", "3")
		env.Set("CARGO_PROFILE_RELEASE_EMBED_BITCODE", "yes")
		return
	}
	env.Set("RUSTFLAGS", "-C opt-level=2 -C target-cpu=native")
	env.Set("CARGO_PROFILE_RELEASE_OPT_LEVEL", "2")
}
