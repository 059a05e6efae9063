// Package sandbox executes assembled harness scripts under a resource
// bounded, time bounded, network denied isolation boundary.
//
// Two interchangeable backends honor the same contract: a restricted OS
// subprocess wrapped in timeout(1) and a docker container invocation. Both
// enforce an inner time limit through the boundary itself and rely on the
// caller-supplied context as the outer supervisory limit.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// Output is the raw outcome of one sandboxed execution. User-code failures
// (non-zero exit, timeout, garbage on stdout) are reported here, not as
// errors; Run returns an error only when the boundary itself failed.
type Output struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Duration time.Duration
}

// Runner runs a harness script to completion or forced termination.
type Runner interface {
	Run(ctx context.Context, scriptPath string) (Output, error)
}

// Limits bounds a single execution.
type Limits struct {
	// ExecTimeout is enforced inside the isolation boundary (timeout(1)
	// wrapper or container flag).
	ExecTimeout time.Duration
	// WallTimeout is the outer supervisory limit enforced by the runner as
	// a safety net against the inner mechanism failing to fire.
	WallTimeout time.Duration
	// MemoryMB caps the user process memory.
	MemoryMB int
	// OutputLimit caps captured stdout / stderr bytes.
	OutputLimit int64
}

// timeout(1) reserves 124 for an expired limit; 137 is 128+SIGKILL.
const (
	timeoutExitCode = 124
	sigkillExitCode = 137
)

func execSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		s = 1
	}
	return s
}

func timedOut(exitCode int, ctxErr error) bool {
	if exitCode == timeoutExitCode || exitCode == sigkillExitCode {
		return true
	}
	return errors.Is(ctxErr, context.DeadlineExceeded)
}

// limitedBuffer captures up to max bytes and silently discards the rest so
// runaway output from user code cannot exhaust host memory.
type limitedBuffer struct {
	max int64
	buf []byte
}

func newLimitedBuffer(max int64) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remain := b.max - int64(len(b.buf)); remain > 0 {
		if int64(len(p)) > remain {
			b.buf = append(b.buf, p[:remain]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf
}
