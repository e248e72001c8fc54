// Package source materializes and verifies upstream checkouts.
//
// Acquire is idempotent: a fresh destination gets a shallow, tag-pinned
// clone; an existing one gets a shallow fetch of just the target tag
// followed by a checkout. Full-history fetches never happen.
//
// Verify is a detective control. It runs after checkout, so a corrupted
// tree can already exist on disk; its value is surfacing a tag/commit
// discrepancy before compilation burns time. A mismatch never proceeds
// silently; the caller must hold an explicit override.
package source

import (
	"fmt"
	"os"

	"bitforge/internal/command"
)

// Checkout describes a materialized source tree. Commit is populated
// only after a successful acquire.
type Checkout struct {
	Dir    string
	Tag    string
	Commit string
}

// VerificationError reports a checkout whose commit does not match the
// tag it was supposed to pin, with no override granted.
type VerificationError struct {
	Dir      string
	Tag      string
	Head     string
	Expected string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("source verification failed for %s: HEAD %s does not match tag %s (%s)",
		e.Dir, short(e.Head), e.Tag, short(e.Expected))
}

func short(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	if commit == "" {
		return "unresolved"
	}
	return commit
}

// Acquirer performs git operations through a command Runner.
type Acquirer struct {
	Runner command.Runner
}

// Acquire materializes repoURL at tag inside dir, running git with the
// composed environment. Re-invocation with the same tag is a no-op
// beyond a redundant shallow fetch and checkout.
func (a *Acquirer) Acquire(repoURL, tag, dir string, env []string) (*Checkout, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		clone := command.Spec{
			Argv: []string{"git", "clone", "--depth", "1", "--branch", tag, repoURL, dir},
			Env:  env,
		}
		if err := a.Runner.Run(clone); err != nil {
			return nil, err
		}
	} else {
		fetch := command.Spec{
			Argv: []string{"git", "fetch", "--depth", "1", "origin", "tag", tag},
			Dir:  dir,
			Env:  env,
		}
		if err := a.Runner.Run(fetch); err != nil {
			return nil, err
		}
		checkout := command.Spec{
			Argv: []string{"git", "checkout", tag},
			Dir:  dir,
			Env:  env,
		}
		if err := a.Runner.Run(checkout); err != nil {
			return nil, err
		}
	}

	commit, _ := headCommit(a.Runner, dir)
	return &Checkout{Dir: dir, Tag: tag, Commit: commit}, nil
}

// headCommit resolves the current commit of the working tree.
func headCommit(r command.Runner, dir string) (string, error) {
	return r.Output(command.Spec{
		Argv: []string{"git", "rev-parse", "HEAD"},
		Dir:  dir,
	})
}

// tagCommit resolves the commit a tag points to.
func tagCommit(r command.Runner, dir, tag string) (string, error) {
	return r.Output(command.Spec{
		Argv: []string{"git", "rev-list", "-n", "1", tag},
		Dir:  dir,
	})
}

// Verify compares the checkout's HEAD against the commit its tag
// resolves to. Inability to resolve either side counts as a mismatch.
// The returned *VerificationError is nil only when both commits
// resolved and are equal.
func (a *Acquirer) Verify(co *Checkout) *VerificationError {
	head, err := headCommit(a.Runner, co.Dir)
	if err != nil {
		head = ""
	}
	expected, err := tagCommit(a.Runner, co.Dir, co.Tag)
	if err != nil {
		expected = ""
	}
	if head != "" && expected != "" && head == expected {
		co.Commit = head
		return nil
	}
	return &VerificationError{Dir: co.Dir, Tag: co.Tag, Head: head, Expected: expected}
}
