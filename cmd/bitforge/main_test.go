package main

import (
	"bytes"
	"strings"
	"testing"

	"bitforge/internal/builder"
)

func TestPrintUsageListsAllCommands(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	out := buf.String()
	for _, c := range commands {
		if !strings.Contains(out, c.name) {
			t.Errorf("usage missing command %q:\n%s", c.name, out)
		}
		if !strings.Contains(out, c.short) {
			t.Errorf("usage missing summary for %q", c.name)
		}
	}
}

func TestPrintCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	printCommandHelp(&buf, "build")
	out := buf.String()
	if !strings.Contains(out, "bitforge build [flags]") {
		t.Errorf("help missing usage line:\n%s", out)
	}
	if !strings.Contains(out, "-aggressive") {
		t.Errorf("help missing flag docs:\n%s", out)
	}

	buf.Reset()
	printCommandHelp(&buf, "nonesuch")
	if !strings.Contains(buf.String(), "unknown command") {
		t.Errorf("unknown command not reported:\n%s", buf.String())
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch([]string{"frobnicate"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("error %q does not name the command", err)
	}
}

func TestDispatchHelp(t *testing.T) {
	// help paths print and return nil; they must not be errors.
	for _, args := range [][]string{nil, {"-h"}, {"--help"}, {"help"}, {"help", "status"}} {
		if err := dispatch(args); err != nil {
			t.Errorf("dispatch(%v) = %v, want nil", args, err)
		}
	}
}

func TestSelectTargets(t *testing.T) {
	tests := []struct {
		name    string
		want    []string
		wantErr bool
	}{
		{name: "bitcoin", want: []string{"bitcoin"}},
		{name: "electrs", want: []string{"electrs"}},
		{name: "both", want: []string{"bitcoin", "electrs"}},
		{name: "all", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		targets, err := selectTargets(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("selectTargets(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(targets) != len(tt.want) {
			t.Errorf("selectTargets(%q) = %v", tt.name, targets)
			continue
		}
		for i, want := range tt.want {
			if targets[i].Name != want {
				t.Errorf("selectTargets(%q)[%d] = %s, want %s", tt.name, i, targets[i].Name, want)
			}
		}
	}
}

// TestPreflightGates: the monitor's prompter only ever answers for the
// gate that was resolved up front; verification stays fail-closed.
func TestPreflightGates(t *testing.T) {
	granted := preflightGates{aggressiveOK: true}
	if !granted.Confirm(builder.GateAggressive, "") {
		t.Error("pre-granted aggressive gate must confirm")
	}
	if granted.Confirm(builder.GateVerification, "") {
		t.Error("verification gate must never confirm interactively in the monitor")
	}

	denied := preflightGates{}
	if denied.Confirm(builder.GateAggressive, "") {
		t.Error("unresolved aggressive gate must decline")
	}
}
