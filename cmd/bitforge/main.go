package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"bitforge/internal/builder"
	"bitforge/internal/command"
	"bitforge/internal/config"
	"bitforge/internal/event"
	"bitforge/internal/host"
	"bitforge/internal/releases"
	"bitforge/internal/toolchain"
	"bitforge/internal/tui"
	"bitforge/internal/workspace"
)

// cmd describes a CLI subcommand.
type cmd struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []cmd{
	{
		name:  "versions",
		short: "List buildable upstream versions",
		usage: "bitforge versions",
		long: `Fetch the release listings for Bitcoin Core and electrs.

Bitcoin versions are grouped by major.minor with only the newest patch
kept (up to 5 groups); electrs versions are the 3 newest releases.
Release candidates are always excluded. A network failure prints an
empty list rather than erroring.
`,
		run: runVersions,
	},
	{
		name:  "build",
		short: "Compile one or both targets from source",
		usage: "bitforge build [flags]",
		long: `Fetch, configure, and compile the selected targets, then collect the
binaries under <dir>/binaries/<target>-<version>/.

Flags:
  -target string     bitcoin, electrs, or both (default "both")
  -dir string        build directory (default ~/Downloads/bitcoin_builds)
  -jobs int          compile parallelism, clamped to [1, host cores] (default all cores)
  -bitcoin string    pin a Bitcoin Core tag (default: newest release)
  -electrs string    pin an electrs tag (default: newest release)
  -aggressive        O3 + LTO tier (asks for confirmation first)
  -allow-unverified  continue past a tag/commit verification mismatch
  -plain             line output instead of the TUI monitor

Defaults may also be set in ~/.bitforge/settings.yaml.
`,
		run: runBuild,
	},
	{
		name:  "deps",
		short: "Check (and optionally install) build dependencies",
		usage: "bitforge deps",
		long: `Check the Homebrew packages the builds depend on and probe the Rust
toolchain. Offers to install anything missing.
`,
		run: runDeps,
	},
	{
		name:  "status",
		short: "Show host info and previously collected builds",
		usage: "bitforge status [dir]",
		long: `Print the host summary (OS, architecture, Homebrew prefix, CPU count)
and list the build outputs already collected under the build directory.
`,
		run: runStatus,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "bitforge - compile Bitcoin Core and electrs from source\n\n")
	fmt.Fprintf(w, "Usage:\n  bitforge <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.short)
	}
	fmt.Fprintf(w, "\nRun 'bitforge help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, c := range commands {
		if c.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", c.usage, c.long)
			return
		}
	}
	fmt.Fprintf(w, "bitforge: unknown command %q\n\nRun 'bitforge help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'bitforge help' for usage.", args[0])
}

// ---------------------------------------------------------------------------
// versions
// ---------------------------------------------------------------------------

func runVersions(args []string) error {
	client := releases.NewClient()

	fmt.Println("Bitcoin Core:")
	printTags(client.BitcoinVersions())
	fmt.Println("electrs:")
	printTags(client.ElectrsVersions())
	return nil
}

func printTags(tags []string) {
	if len(tags) == 0 {
		fmt.Println("  (none available; network problem?)")
		return
	}
	for _, t := range tags {
		fmt.Printf("  %s\n", t)
	}
}

// ---------------------------------------------------------------------------
// build
// ---------------------------------------------------------------------------

func runBuild(args []string) error {
	settings, err := config.LoadHome()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	target := fs.String("target", "both", "bitcoin, electrs, or both")
	dir := fs.String("dir", settings.DefaultBuildDir(), "build directory")
	jobs := fs.Int("jobs", settings.DefaultJobs(), "compile parallelism")
	bitcoinVer := fs.String("bitcoin", settings.PinnedVersion(builder.Bitcoin.Name), "Bitcoin Core tag to build")
	electrsVer := fs.String("electrs", settings.PinnedVersion(builder.Electrs.Name), "electrs tag to build")
	aggressive := fs.Bool("aggressive", settings.DefaultAggressive(), "O3 + LTO optimization tier")
	allowUnverified := fs.Bool("allow-unverified", settings.DefaultAllowUnverified(), "continue past verification mismatch")
	plain := fs.Bool("plain", false, "line output instead of the TUI monitor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	targets, err := selectTargets(*target)
	if err != nil {
		return err
	}
	req := builder.Request{
		Targets: targets,
		Versions: map[string]string{
			builder.Bitcoin.Name: *bitcoinVer,
			builder.Electrs.Name: *electrsVer,
		},
		Jobs:            *jobs,
		BuildDir:        *dir,
		Aggressive:      *aggressive,
		AllowUnverified: *allowUnverified,
	}

	if *plain {
		return runPlain(req)
	}
	return runMonitored(req)
}

func selectTargets(name string) ([]builder.Target, error) {
	switch name {
	case "bitcoin":
		return []builder.Target{builder.Bitcoin}, nil
	case "electrs":
		return []builder.Target{builder.Electrs}, nil
	case "both":
		return []builder.Target{builder.Bitcoin, builder.Electrs}, nil
	default:
		return nil, fmt.Errorf("unknown target %q (want bitcoin, electrs, or both)", name)
	}
}

// runPlain drives the build with line output and interactive stdin
// gates.
func runPlain(req builder.Request) error {
	sink := event.SinkFunc(func(e event.Event) {
		switch e := e.(type) {
		case event.Line:
			fmt.Println(string(e))
		case event.Stage:
			fmt.Printf("==> %s: %s\n", e.Target, e.Name)
		case event.Progress:
			fmt.Printf("progress: %3.0f%%\n", float64(e)*100)
		}
	})
	results, err := builder.New(sink, stdinPrompter{}).Run(req)
	reportResults(results)
	return err
}

// runMonitored drives the build inside the TUI monitor. The
// aggressive-tier gate is resolved on the terminal before the monitor
// takes over the screen; the verification gate inside the monitor is
// granted only by -allow-unverified.
func runMonitored(req builder.Request) error {
	gates := preflightGates{}
	if req.Aggressive {
		if !(stdinPrompter{}).Confirm(builder.GateAggressive, "Continue with aggressive optimizations?") {
			return fmt.Errorf("aggressive optimizations declined; rerun at the standard tier")
		}
		gates.aggressiveOK = true
	}

	var results []*builder.Result
	err := tui.RunMonitor(func(sink event.Sink) error {
		var runErr error
		results, runErr = builder.New(sink, gates).Run(req)
		return runErr
	})
	reportResults(results)
	return err
}

func reportResults(results []*builder.Result) {
	for _, r := range results {
		fmt.Printf("%s %s: %d binaries in %s\n", r.Target, r.Version, len(r.Copied), r.OutputDir)
	}
}

// ---------------------------------------------------------------------------
// deps
// ---------------------------------------------------------------------------

func runDeps(args []string) error {
	sink := event.SinkFunc(func(e event.Event) {
		if l, ok := e.(event.Line); ok {
			fmt.Println(string(l))
		}
	})
	runner := command.NewStreamRunner(sink)
	checker := toolchain.NewChecker(host.FindBrew(), runner, sink)

	fmt.Println("Checking Homebrew packages:")
	missing, err := checker.Missing(toolchain.BrewPackages)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Printf("\n%d packages missing: %s\n", len(missing), strings.Join(missing, ", "))
		if askYesNo(fmt.Sprintf("Install %d missing packages now?", len(missing))) {
			if err := checker.Install(missing); err != nil {
				return err
			}
		} else {
			fmt.Println("Skipped; compilation may fail.")
		}
	} else {
		fmt.Println("All Homebrew packages installed.")
	}

	fmt.Println("\nChecking Rust toolchain:")
	rust, err := checker.Rust(os.Environ())
	if err != nil {
		fmt.Printf("  %v\n", err)
		return nil
	}
	fmt.Printf("  cargo: %s\n", rust.Cargo)
	if rust.Rustc != "" {
		fmt.Printf("  rustc: %s\n", rust.Rustc)
	}
	return nil
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func runStatus(args []string) error {
	fmt.Println(host.Describe())

	root := ""
	if len(args) >= 1 {
		root = args[0]
	} else if s, _ := config.LoadHome(); s != nil {
		root = s.BuildDir
	}
	if root == "" {
		root = workspace.DefaultRoot()
	}

	collected, err := workspace.Layout{Root: root}.ListCollected()
	if err != nil {
		return err
	}
	fmt.Printf("\nCollected builds in %s:\n", root)
	if len(collected) == 0 {
		fmt.Println("  (none)")
		return nil
	}
	for _, c := range collected {
		fmt.Printf("  %-20s %s\n", c.Name, strings.Join(c.Binaries, " "))
	}
	return nil
}

// ---------------------------------------------------------------------------
// gate prompters
// ---------------------------------------------------------------------------

// stdinPrompter asks gate questions on the terminal.
type stdinPrompter struct{}

func (stdinPrompter) Confirm(g builder.Gate, question string) bool {
	switch g {
	case builder.GateAggressive:
		fmt.Println("\n*** Aggressive Optimizations ***")
	case builder.GateVerification:
		fmt.Println("\n*** Source Verification Warning ***")
	}
	fmt.Println(question)
	return askYesNo("Proceed?")
}

// preflightGates answers gates that were resolved before the monitor
// started. Verification stays fail-closed: the -allow-unverified flag
// bypasses the gate inside the orchestrator itself.
type preflightGates struct {
	aggressiveOK bool
}

func (p preflightGates) Confirm(g builder.Gate, _ string) bool {
	return g == builder.GateAggressive && p.aggressiveOK
}

// askYesNo reads a y/n answer from stdin; anything but y/yes is no.
func askYesNo(question string) bool {
	fmt.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
