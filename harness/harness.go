// Package harness assembles the per-request python script that hosts a
// submitted solution, judges it against the problem's test cases inside the
// sandbox and prints a single-line JSON verdict on stdout.
//
// The template has exactly two injection points: the user-code slot is the
// whole body of the submitted source, and the data slot is a single escaped
// JSON string literal. No request-derived content ever reaches the template's
// own control flow.
package harness

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codetrainer/judged/problem"
)

//go:embed run.py
var template string

const (
	userCodeMarker = "__JUDGED_USER_CODE__"
	testDataMarker = "__JUDGED_TEST_DATA__"
	scriptName     = "solution.py"
)

// ErrAssemble marks infrastructure failures during script assembly. The
// gateway maps it to a generic 500-class error result.
var ErrAssemble = errors.New("harness assembly failed")

// Script is an assembled harness inside its private working directory.
type Script struct {
	// Path of the runnable solution.py.
	Path string

	dir string
}

// Dir returns the per-request working directory owning the script.
func (s Script) Dir() string {
	return s.dir
}

// Remove deletes the working directory and everything in it.
func (s Script) Remove() error {
	return os.RemoveAll(s.dir)
}

// Assembler materializes runnable harness scripts under a base directory.
type Assembler struct {
	baseDir string
}

// NewAssembler creates an assembler rooted at baseDir.
func NewAssembler(baseDir string) *Assembler {
	return &Assembler{baseDir: baseDir}
}

// Assemble writes a self-contained harness for the given submission into a
// freshly created per-request directory. The caller owns the directory until
// it calls Remove, on every exit path.
func (a *Assembler) Assemble(sourceCode string, p problem.Problem) (Script, error) {
	blob, err := encodeTestData(p)
	if err != nil {
		return Script{}, fmt.Errorf("%w: encode test data: %w", ErrAssemble, err)
	}

	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return Script{}, fmt.Errorf("%w: create base dir: %w", ErrAssemble, err)
	}
	dir, err := os.MkdirTemp(a.baseDir, "run-*")
	if err != nil {
		return Script{}, fmt.Errorf("%w: create working dir: %w", ErrAssemble, err)
	}

	script := strings.Replace(template, userCodeMarker, sourceCode, 1)
	script = strings.Replace(script, testDataMarker, blob, 1)

	path := filepath.Join(dir, scriptName)
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		os.RemoveAll(dir)
		return Script{}, fmt.Errorf("%w: write script: %w", ErrAssemble, err)
	}
	return Script{Path: path, dir: dir}, nil
}

// encodeTestData serializes the problem's judging data to a blob safe to
// substitute into the template's single-quoted string literal. Backslashes
// are doubled before quotes so the blob cannot terminate the literal.
func encodeTestData(p problem.Problem) (string, error) {
	compare := p.Compare
	if compare == "" {
		compare = problem.CompareExact
	}
	raw, err := json.Marshal(struct {
		FunctionName string              `json:"functionName"`
		TestCases    []problem.TestCase  `json:"testCases"`
		Compare      problem.CompareKind `json:"compareFunction"`
	}{p.FunctionName, p.TestCases, compare})
	if err != nil {
		return "", err
	}
	s := strings.ReplaceAll(string(raw), `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s, nil
}
