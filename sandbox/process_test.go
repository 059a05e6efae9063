//go:build unix

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func requireTools(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"timeout", "python3"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solution.py")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLimits() Limits {
	return Limits{
		ExecTimeout: 2 * time.Second,
		WallTimeout: 5 * time.Second,
		MemoryMB:    128,
		OutputLimit: 1 << 20,
	}
}

func TestProcessRunnerCleanExit(t *testing.T) {
	requireTools(t)
	r := NewProcessRunner("python3", testLimits(), 0, 0, zaptest.NewLogger(t))

	out, err := r.Run(context.Background(), writeScript(t, `print('{"ok": true}')`))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d (stderr: %s)", out.ExitCode, out.Stderr)
	}
	if out.TimedOut {
		t.Error("unexpected timeout")
	}
	if strings.TrimSpace(string(out.Stdout)) != `{"ok": true}` {
		t.Errorf("unexpected stdout: %q", out.Stdout)
	}
}

func TestProcessRunnerNonZeroExit(t *testing.T) {
	requireTools(t)
	r := NewProcessRunner("python3", testLimits(), 0, 0, zaptest.NewLogger(t))

	out, err := r.Run(context.Background(), writeScript(t, "import sys\nsys.stderr.write('boom\\n')\nsys.exit(3)\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", out.ExitCode)
	}
	if out.TimedOut {
		t.Error("unexpected timeout")
	}
	if !strings.Contains(string(out.Stderr), "boom") {
		t.Errorf("stderr not captured: %q", out.Stderr)
	}
}

func TestProcessRunnerInnerTimeout(t *testing.T) {
	requireTools(t)
	limits := Limits{
		ExecTimeout: 1 * time.Second,
		WallTimeout: 4 * time.Second,
		OutputLimit: 1 << 20,
	}
	r := NewProcessRunner("python3", limits, 0, 0, zaptest.NewLogger(t))

	start := time.Now()
	out, err := r.Run(context.Background(), writeScript(t, "while True:\n    pass\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.TimedOut {
		t.Errorf("expected timeout, got exit %d", out.ExitCode)
	}
	if elapsed := time.Since(start); elapsed >= limits.WallTimeout {
		t.Errorf("inner limit did not fire before the outer one: %s", elapsed)
	}
}

func TestProcessRunnerEnvironmentAllowList(t *testing.T) {
	requireTools(t)
	t.Setenv("JUDGED_TEST_SECRET", "leak-me")
	r := NewProcessRunner("python3", testLimits(), 0, 0, zaptest.NewLogger(t))

	out, err := r.Run(context.Background(), writeScript(t, "import os\nprint(os.environ.get('JUDGED_TEST_SECRET', 'absent'))\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(out.Stdout)) != "absent" {
		t.Error("parent environment leaked into the sandbox")
	}
}

func TestProcessRunnerMissingInterpreter(t *testing.T) {
	if _, err := exec.LookPath("timeout"); err != nil {
		t.Skip("timeout not available")
	}
	r := NewProcessRunner("definitely-not-python", testLimits(), 0, 0, zaptest.NewLogger(t))

	out, err := r.Run(context.Background(), writeScript(t, "print('hi')\n"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// timeout(1) exits 127 when the command is not found; that is a
	// classified outcome, not an infrastructure error.
	if out.ExitCode == 0 {
		t.Error("expected non-zero exit for missing interpreter")
	}
}
