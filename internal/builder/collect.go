package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bitforge/internal/event"
	"bitforge/internal/workspace"
)

// Result is the terminal outcome of one target's pipeline.
type Result struct {
	Target    string
	Version   string
	OutputDir string
	Copied    []string // destination paths of collected binaries
	Missing   []string // base names of expected binaries not produced
}

// NoArtifactsError means the build apparently produced nothing usable:
// every expected binary was missing from the build tree.
type NoArtifactsError struct {
	OutputDir string
}

func (e *NoArtifactsError) Error() string {
	return fmt.Sprintf("no binaries were collected into %s; the build produced nothing usable", e.OutputDir)
}

// sumsFile is written next to the collected binaries so outputs can be
// checked after the fact.
const sumsFile = "SHA256SUMS"

// Collect copies each present candidate into destDir with the
// executable bit set, recording absentees as data rather than faults.
// A SHA256SUMS sidecar covers everything copied. Only an empty copied
// set is an error.
func Collect(candidates []string, destDir string, sink event.Sink) (*Result, error) {
	if sink == nil {
		sink = event.Discard
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	sink.Emit(event.Line("Copying binaries to: " + destDir))

	res := &Result{OutputDir: destDir}
	var sums []string
	for _, src := range candidates {
		name := filepath.Base(src)
		if _, err := os.Stat(src); err != nil {
			sink.Emit(event.Line("  missing: " + name))
			res.Missing = append(res.Missing, name)
			continue
		}
		dst := filepath.Join(destDir, name)
		if err := workspace.CopyFile(src, dst, 0o755); err != nil {
			return nil, fmt.Errorf("copy %s: %w", name, err)
		}
		sum, err := fileSHA256(dst)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		sums = append(sums, sum+"  "+name)
		res.Copied = append(res.Copied, dst)
		sink.Emit(event.Line("  copied:  " + name))
	}

	if len(res.Copied) == 0 {
		return res, &NoArtifactsError{OutputDir: destDir}
	}
	sumsPath := filepath.Join(destDir, sumsFile)
	if err := os.WriteFile(sumsPath, []byte(strings.Join(sums, "\n")+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", sumsFile, err)
	}
	return res, nil
}

// fileSHA256 hashes a file's contents.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
