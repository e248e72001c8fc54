package builder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitforge/internal/event"
)

func writeFakeBinary(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho "+name+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollectCopiesPresentBinaries(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "bitcoin-25.0")
	var col event.Collector

	candidates := []string{
		writeFakeBinary(t, srcDir, "bitcoind"),
		writeFakeBinary(t, srcDir, "bitcoin-cli"),
	}
	res, err := Collect(candidates, destDir, &col)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(res.Copied) != 2 || len(res.Missing) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, dst := range res.Copied {
		info, statErr := os.Stat(dst)
		if statErr != nil {
			t.Fatalf("copied binary missing: %v", statErr)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("%s mode = %v, want 0755", dst, info.Mode().Perm())
		}
		if filepath.Dir(dst) != destDir {
			t.Errorf("binary copied to %s, want %s", filepath.Dir(dst), destDir)
		}
	}
}

// TestCollectRecordsMissing: an absent candidate is data, not a fault,
// as long as something was copied.
func TestCollectRecordsMissing(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "out")

	candidates := []string{
		writeFakeBinary(t, srcDir, "bitcoind"),
		filepath.Join(srcDir, "bitcoin-util"), // never produced
	}
	res, err := Collect(candidates, destDir, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(res.Copied) != 1 {
		t.Errorf("Copied = %v, want one entry", res.Copied)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "bitcoin-util" {
		t.Errorf("Missing = %v, want [bitcoin-util]", res.Missing)
	}
}

func TestCollectNothingProducedIsError(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "out")

	candidates := []string{
		filepath.Join(srcDir, "bitcoind"),
		filepath.Join(srcDir, "bitcoin-cli"),
	}
	_, err := Collect(candidates, destDir, nil)
	var naErr *NoArtifactsError
	if !errors.As(err, &naErr) {
		t.Fatalf("error = %v, want *NoArtifactsError", err)
	}
	if naErr.OutputDir != destDir {
		t.Errorf("OutputDir = %q, want %q", naErr.OutputDir, destDir)
	}
}

// TestCollectWritesChecksums: the sidecar lists one sum per copied
// binary and omits absentees.
func TestCollectWritesChecksums(t *testing.T) {
	srcDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "out")

	candidates := []string{
		writeFakeBinary(t, srcDir, "bitcoind"),
		writeFakeBinary(t, srcDir, "bitcoin-cli"),
		filepath.Join(srcDir, "bitcoin-tx"), // absent
	}
	if _, err := Collect(candidates, destDir, nil); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "SHA256SUMS"))
	if err != nil {
		t.Fatalf("read sums: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("sums lines = %v, want 2", lines)
	}
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) != 2 || len(fields[0]) != 64 {
			t.Errorf("malformed sums line %q", l)
		}
		if fields[1] == "bitcoin-tx" {
			t.Errorf("absent binary listed in sums: %q", l)
		}
	}
}

func TestCollectOverwritesStaleOutputs(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	stale := filepath.Join(destDir, "bitcoind")
	if err := os.WriteFile(stale, []byte("old build"), 0o755); err != nil {
		t.Fatal(err)
	}

	src := writeFakeBinary(t, srcDir, "bitcoind")
	if _, err := Collect([]string{src}, destDir, nil); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got, _ := os.ReadFile(stale)
	want, _ := os.ReadFile(src)
	if string(got) != string(want) {
		t.Error("stale output not replaced by fresh binary")
	}
}
