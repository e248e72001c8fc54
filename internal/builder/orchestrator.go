package builder

import (
	"fmt"
	"runtime"

	"bitforge/internal/buildenv"
	"bitforge/internal/command"
	"bitforge/internal/event"
	"bitforge/internal/releases"
	"bitforge/internal/source"
	"bitforge/internal/workspace"
)

// Request is everything one orchestration run needs, passed by the
// caller. The orchestrator never reads presentation state; it only
// emits events through its sink.
type Request struct {
	Targets  []Target
	Versions map[string]string // target name → pinned tag; "" resolves from the catalog
	Jobs     int               // clamped to [1, NumCPU]
	BuildDir string

	// Aggressive selects the O3+LTO tier. Requires confirmation
	// through the Prompter before any subprocess starts.
	Aggressive bool
	// AllowUnverified is a pre-granted override for the integrity
	// gate: a tag/commit mismatch is logged and the build continues.
	AllowUnverified bool
}

// Gate names a user-gated decision point.
type Gate int

const (
	// GateAggressive is the pre-flight warning for the O3+LTO tier.
	GateAggressive Gate = iota
	// GateVerification is the integrity-mismatch override.
	GateVerification
)

// Prompter answers the user-gated decisions. Declining either gate
// stops the pipeline before further work.
type Prompter interface {
	Confirm(g Gate, question string) bool
}

// DeclineAll is the fail-closed Prompter: every gate is answered no.
type DeclineAll struct{}

func (DeclineAll) Confirm(Gate, string) bool { return false }

// Orchestrator sequences the pipeline per target: resolve version →
// compose environment → acquire source → verify (gated) → build →
// collect. Targets run strictly one after another; they contend for
// the same core budget and each build validates its own freshly
// composed environment.
type Orchestrator struct {
	Composer *buildenv.Composer
	Runner   command.Runner
	Catalog  *releases.Client
	Sink     event.Sink
	Prompt   Prompter
}

// New wires an orchestrator for the live host, emitting into sink.
func New(sink event.Sink, prompt Prompter) *Orchestrator {
	if sink == nil {
		sink = event.Discard
	}
	if prompt == nil {
		prompt = DeclineAll{}
	}
	return &Orchestrator{
		Composer: buildenv.NewComposer(),
		Runner:   command.NewStreamRunner(sink),
		Catalog:  releases.NewClient(),
		Sink:     sink,
		Prompt:   prompt,
	}
}

const aggressiveWarning = "Aggressive optimizations (O3 + LTO) may lengthen the build, " +
	"fail to compile some versions, or produce unstable binaries. Continue?"

// Run drives the requested targets sequentially. A failure on one
// target aborts the remaining ones; results for targets completed
// before the failure are returned alongside the error. Progress resets
// to zero at the start of every run and only moves forward within it.
func (o *Orchestrator) Run(req Request) ([]*Result, error) {
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("no build targets selected")
	}
	o.Sink.Emit(event.Progress(0))

	tier := buildenv.Standard
	if req.Aggressive {
		if !o.Prompt.Confirm(GateAggressive, aggressiveWarning) {
			return nil, fmt.Errorf("aggressive optimizations declined; rerun at the standard tier")
		}
		tier = buildenv.Aggressive
	}

	jobs := clampJobs(req.Jobs)
	layout := workspace.Layout{Root: req.BuildDir}
	if layout.Root == "" {
		layout.Root = workspace.DefaultRoot()
	}
	if err := layout.EnsureRoot(); err != nil {
		return nil, err
	}

	var results []*Result
	for i, t := range req.Targets {
		start, end := progressSpan(i, len(req.Targets))
		o.Sink.Emit(event.Progress(start))

		res, err := o.buildOne(t, req, tier, jobs, layout)
		if err != nil {
			// Abort-all on first failure; see DESIGN.md for the
			// continue-independently alternative.
			return results, fmt.Errorf("%s: %w", t.Name, err)
		}
		results = append(results, res)
		o.Sink.Emit(event.Progress(end))
	}
	o.Sink.Emit(event.Progress(1))
	return results, nil
}

// progressSpan returns the fraction boundaries for target i of n.
// Matches the established reporting shape: a single target moves
// .10 → 1.0; two targets move .10 → .50 and .60 → 1.0.
func progressSpan(i, n int) (start, end float64) {
	if n == 1 {
		return 0.10, 1.0
	}
	width := 1.0 / float64(n)
	start = float64(i)*width + 0.10
	end = float64(i+1) * width
	return start, end
}

func clampJobs(jobs int) int {
	max := runtime.NumCPU()
	if jobs < 1 {
		return max
	}
	if jobs > max {
		return max
	}
	return jobs
}

// buildOne runs the full pipeline for a single target.
func (o *Orchestrator) buildOne(t Target, req Request, tier buildenv.Tier, jobs int, layout workspace.Layout) (*Result, error) {
	version, err := o.resolveVersion(t, req)
	if err != nil {
		return nil, err
	}
	o.Sink.Emit(event.Stage{Target: t.Name, Name: "resolve"})
	o.Sink.Emit(event.Line(fmt.Sprintf("=== %s %s (%s, %s) ===", t.Name, version, o.Composer.Arch, tier)))

	o.Sink.Emit(event.Stage{Target: t.Name, Name: "environment"})
	env := o.Composer.Compose(tier)
	if t.Name == Electrs.Name {
		buildenv.AddRustFlags(env, tier)
	}
	o.logEnv(env)

	strategy, err := SelectStrategy(t, version)
	if err != nil {
		return nil, err
	}
	if err := strategy.Preflight(o.Runner, env); err != nil {
		return nil, err
	}

	o.Sink.Emit(event.Stage{Target: t.Name, Name: "acquire"})
	srcDir := layout.SourceDir(t.Name, version)
	acq := &source.Acquirer{Runner: o.Runner}
	checkout, err := acq.Acquire(t.RepoURL, version, srcDir, env.Environ())
	if err != nil {
		return nil, err
	}

	o.Sink.Emit(event.Stage{Target: t.Name, Name: "verify"})
	if verr := acq.Verify(checkout); verr != nil {
		o.Sink.Emit(event.Line("WARNING: " + verr.Error()))
		override := req.AllowUnverified ||
			o.Prompt.Confirm(GateVerification,
				fmt.Sprintf("%s source could not be verified against tag %s. Continue anyway?", t.Name, version))
		if !override {
			return nil, verr
		}
		o.Sink.Emit(event.Line("override granted; continuing with unverified source"))
	} else {
		o.Sink.Emit(event.Line(fmt.Sprintf("source verified: %s is at %s", version, shortCommit(checkout.Commit))))
	}

	o.Sink.Emit(event.Stage{Target: t.Name, Name: "build"})
	o.Sink.Emit(event.Line(fmt.Sprintf("building with %s (%d jobs)", strategy.Name(), jobs)))
	if err := strategy.Build(o.Runner, srcDir, env, jobs); err != nil {
		return nil, err
	}

	o.Sink.Emit(event.Stage{Target: t.Name, Name: "collect"})
	res, err := Collect(strategy.Binaries(srcDir), layout.OutputDir(t.Name, version), o.Sink)
	if err != nil {
		return nil, err
	}
	res.Target = t.Name
	res.Version = version
	o.Sink.Emit(event.Line(fmt.Sprintf("%s %s done: %d binaries in %s", t.Name, version, len(res.Copied), res.OutputDir)))
	return res, nil
}

// resolveVersion picks the tag to build: an explicit pin wins,
// otherwise the newest catalog entry. An empty catalog is an error
// here; build-time failures are fail-hard, unlike the catalog's own
// fail-soft fetch.
func (o *Orchestrator) resolveVersion(t Target, req Request) (string, error) {
	if v := req.Versions[t.Name]; v != "" {
		return v, nil
	}
	var tags []string
	switch t.Name {
	case Bitcoin.Name:
		tags = o.Catalog.BitcoinVersions()
	case Electrs.Name:
		tags = o.Catalog.ElectrsVersions()
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("no %s versions available; check network access or pin a version", t.Name)
	}
	return tags[0], nil
}

// logEnv echoes the variables that decide build behavior.
func (o *Orchestrator) logEnv(env *buildenv.Env) {
	path := env.Get("PATH")
	if len(path) > 150 {
		path = path[:150] + "..."
	}
	o.Sink.Emit(event.Line("  PATH: " + path))
	for _, key := range []string{"CFLAGS", "CXXFLAGS", "LDFLAGS", "LIBCLANG_PATH", "RUSTFLAGS"} {
		if v := env.Get(key); v != "" {
			o.Sink.Emit(event.Line("  " + key + ": " + v))
		}
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
