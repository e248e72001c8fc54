// Package command is the engine's contract with external tools.
//
// A Spec names a command line, working directory, and environment
// overlay. Run executes it synchronously, merging stdout and stderr
// into one ordered line stream that is forwarded to the event sink as
// it arrives; nothing buffers the whole output. A non-zero exit is a
// hard failure carrying the command line and a bounded output tail.
package command

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"bitforge/internal/event"
)

// Spec describes one subprocess invocation.
type Spec struct {
	Argv []string // Argv[0] is the program
	Dir  string   // working directory; "" means inherit
	Env  []string // full environment; nil means inherit
}

func (s Spec) String() string {
	return strings.Join(s.Argv, " ")
}

// Runner executes Specs. The production implementation streams; tests
// substitute fakes that record invocations.
type Runner interface {
	// Run executes the spec, forwarding output line-by-line. A non-zero
	// exit returns a *Error.
	Run(s Spec) error
	// Output executes the spec and returns its trimmed combined output.
	// Used for short probes (git rev-parse, cargo --version).
	Output(s Spec) (string, error)
}

// Error reports a failed command with enough context to render an
// actionable message: the command line, where it ran, how it exited,
// and the tail of what it printed.
type Error struct {
	Argv     []string
	Dir      string
	ExitCode int
	Tail     []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command failed (exit %d): %s", e.ExitCode, strings.Join(e.Argv, " "))
	if len(e.Tail) > 0 {
		msg += "\n" + strings.Join(e.Tail, "\n")
	}
	return msg
}

// tailLines is how much trailing output an Error retains.
const tailLines = 30

// tailBuffer keeps the last n lines seen.
type tailBuffer struct {
	lines []string
	n     int
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[1:]
	}
}

// StreamRunner runs commands with os/exec, draining merged output into
// Sink as lines arrive.
type StreamRunner struct {
	Sink event.Sink
}

// NewStreamRunner returns a runner emitting into sink.
func NewStreamRunner(sink event.Sink) *StreamRunner {
	if sink == nil {
		sink = event.Discard
	}
	return &StreamRunner{Sink: sink}
}

// Run executes the spec. The command line itself is echoed to the sink
// first, then every output line in order. Blocks until exit.
func (r *StreamRunner) Run(s Spec) error {
	r.Sink.Emit(event.Line("$ " + s.String()))

	cmd := exec.Command(s.Argv[0], s.Argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	tail := newTailBuffer(tailLines)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			tail.add(line)
			r.Sink.Emit(event.Line(line))
		}
		// The scanner gives up on oversized lines (ErrTooLong). Keep
		// consuming the pipe regardless: with no reader the child blocks
		// on write and Wait never returns.
		io.Copy(io.Discard, pr)
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-drained
		return fmt.Errorf("start %s: %w", s.Argv[0], err)
	}
	waitErr := cmd.Wait()
	pw.Close()
	<-drained

	if waitErr != nil {
		code := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return &Error{
			Argv:     append([]string(nil), s.Argv...),
			Dir:      s.Dir,
			ExitCode: code,
			Tail:     append([]string(nil), tail.lines...),
		}
	}
	return nil
}

// Output executes the spec and returns its trimmed combined output.
// Failures return a *Error with the full captured output as the tail.
func (r *StreamRunner) Output(s Spec) (string, error) {
	cmd := exec.Command(s.Argv[0], s.Argv[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = s.Env
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		var lines []string
		if text != "" {
			lines = strings.Split(text, "\n")
		}
		return "", &Error{
			Argv:     append([]string(nil), s.Argv...),
			Dir:      s.Dir,
			ExitCode: code,
			Tail:     lines,
		}
	}
	return text, nil
}
