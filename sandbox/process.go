package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ProcessRunner executes the harness as a restricted local subprocess: a
// timeout(1) wrapper enforces the inner limit, the interpreter runs in
// isolated mode with an explicit allow-list environment, and credentials are
// optionally dropped to an unprivileged uid/gid.
type ProcessRunner struct {
	python string
	limits Limits
	uid    int
	gid    int
	logger *zap.Logger
}

// NewProcessRunner creates a subprocess-backed runner. uid/gid <= 0 keeps the
// current credentials (development mode).
func NewProcessRunner(python string, limits Limits, uid, gid int, logger *zap.Logger) *ProcessRunner {
	return &ProcessRunner{
		python: python,
		limits: limits,
		uid:    uid,
		gid:    gid,
		logger: logger,
	}
}

// Run implements Runner.
func (r *ProcessRunner) Run(ctx context.Context, scriptPath string) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.limits.WallTimeout)
	defer cancel()

	secs := execSeconds(r.limits.ExecTimeout)
	cmd := exec.CommandContext(ctx, "timeout", strconv.Itoa(secs), r.python, "-I", "-u", scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	// Never inherit the parent environment: untrusted code must not see
	// host secrets or configuration.
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=/home/runner",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONHASHSEED=0",
	}

	stdout := newLimitedBuffer(r.limits.OutputLimit)
	stderr := newLimitedBuffer(r.limits.OutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setProcessGroup(cmd)
	setCredential(cmd, r.uid, r.gid)
	// The outer limit must take the whole process tree down, not just the
	// wrapper.
	cmd.Cancel = func() error {
		return killTree(cmd)
	}
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	d := time.Since(start)

	exitCode := 0
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return Output{}, fmt.Errorf("spawn sandbox process: %w", err)
		}
		exitCode = ee.ExitCode()
	}

	out := Output{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: timedOut(exitCode, ctx.Err()),
		Duration: d,
	}
	r.logger.Debug("sandbox process finished",
		zap.Int("exitCode", out.ExitCode),
		zap.Bool("timedOut", out.TimedOut),
		zap.Duration("duration", out.Duration))
	return out, nil
}
