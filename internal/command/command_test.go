package command

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bitforge/internal/event"
)

func TestRunStreamsLinesInOrder(t *testing.T) {
	var col event.Collector
	r := NewStreamRunner(&col)

	err := r.Run(Spec{Argv: []string{"sh", "-c", "echo one; echo two; echo three"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := col.Lines()
	// First line echoes the command itself.
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "$ sh") {
		t.Fatalf("unexpected stream: %v", lines)
	}
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if lines[i+1] != w {
			t.Errorf("line %d = %q, want %q", i+1, lines[i+1], w)
		}
	}
}

// TestRunMergesStderr: stderr output lands in the same stream.
func TestRunMergesStderr(t *testing.T) {
	var col event.Collector
	r := NewStreamRunner(&col)

	if err := r.Run(Spec{Argv: []string{"sh", "-c", "echo oops >&2"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	joined := strings.Join(col.Lines(), "\n")
	if !strings.Contains(joined, "oops") {
		t.Errorf("stderr line missing from stream: %v", col.Lines())
	}
}

func TestRunNonZeroExit(t *testing.T) {
	var col event.Collector
	r := NewStreamRunner(&col)

	err := r.Run(Spec{Argv: []string{"sh", "-c", "echo failing; exit 3"}})
	if err == nil {
		t.Fatal("expected error for exit 3, got nil")
	}
	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if len(cmdErr.Tail) == 0 || cmdErr.Tail[len(cmdErr.Tail)-1] != "failing" {
		t.Errorf("Tail = %v, want trailing output captured", cmdErr.Tail)
	}
	if !strings.Contains(cmdErr.Error(), "sh -c") {
		t.Errorf("Error() missing command line: %s", cmdErr.Error())
	}
}

func TestRunMissingProgram(t *testing.T) {
	r := NewStreamRunner(nil)
	err := r.Run(Spec{Argv: []string{"definitely-not-a-real-binary-xyz"}})
	if err == nil {
		t.Fatal("expected error for missing program, got nil")
	}
}

func TestRunRespectsDirAndEnv(t *testing.T) {
	var col event.Collector
	r := NewStreamRunner(&col)

	dir := t.TempDir()
	err := r.Run(Spec{
		Argv: []string{"sh", "-c", "echo $MARKER; pwd"},
		Dir:  dir,
		Env:  []string{"MARKER=hello", "PATH=/usr/bin:/bin"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	joined := strings.Join(col.Lines(), "\n")
	if !strings.Contains(joined, "hello") {
		t.Errorf("env overlay not applied: %v", col.Lines())
	}
	if !strings.Contains(joined, dir) {
		t.Errorf("working dir not applied: %v", col.Lines())
	}
}

// TestRunOversizedLineStillTerminates: a single output line beyond the
// scanner's buffer must not wedge the run. The oversized line is
// dropped from the stream, but the pipe keeps draining so the process
// is still reaped.
func TestRunOversizedLineStillTerminates(t *testing.T) {
	var col event.Collector
	r := NewStreamRunner(&col)

	done := make(chan error, 1)
	go func() {
		// one 2 MiB line, double the scanner's cap
		done <- r.Run(Spec{Argv: []string{"sh", "-c", "head -c 2097152 /dev/zero | tr '\\0' 'a'; echo"}})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("Run blocked on an oversized output line")
	}
}

func TestOutputTrims(t *testing.T) {
	r := NewStreamRunner(nil)
	out, err := r.Output(Spec{Argv: []string{"sh", "-c", "echo '  value  '"}})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "value" {
		t.Errorf("Output = %q, want %q", out, "value")
	}
}

func TestOutputFailureCarriesTail(t *testing.T) {
	r := NewStreamRunner(nil)
	_, err := r.Output(Spec{Argv: []string{"sh", "-c", "echo why >&2; exit 1"}})
	var cmdErr *Error
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if cmdErr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", cmdErr.ExitCode)
	}
	if len(cmdErr.Tail) != 1 || cmdErr.Tail[0] != "why" {
		t.Errorf("Tail = %v, want [why]", cmdErr.Tail)
	}
}

// TestTailBufferBounded: only the last N lines are retained.
func TestTailBufferBounded(t *testing.T) {
	tb := newTailBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		tb.add(l)
	}
	want := []string{"c", "d", "e"}
	if len(tb.lines) != 3 {
		t.Fatalf("len = %d, want 3", len(tb.lines))
	}
	for i, w := range want {
		if tb.lines[i] != w {
			t.Errorf("lines[%d] = %q, want %q", i, tb.lines[i], w)
		}
	}
}
