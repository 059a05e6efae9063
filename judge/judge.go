package judge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codetrainer/judged/harness"
	"github.com/codetrainer/judged/problem"
	"github.com/codetrainer/judged/sandbox"
)

// Judge owns the assemble -> run -> classify pipeline for one submission.
type Judge struct {
	assembler   *harness.Assembler
	runner      sandbox.Runner
	execTimeout time.Duration
	logger      *zap.Logger
}

// New creates a judge on top of the given assembler and isolation runner.
func New(assembler *harness.Assembler, runner sandbox.Runner, execTimeout time.Duration, logger *zap.Logger) *Judge {
	return &Judge{
		assembler:   assembler,
		runner:      runner,
		execTimeout: execTimeout,
		logger:      logger,
	}
}

// Execute judges sourceCode against the problem. User-code failures come
// back as an error-kind Result; a non-nil error means the service's own
// infrastructure failed and the gateway must answer with a generic 500.
// The per-request working directory is removed on every exit path.
func (j *Judge) Execute(ctx context.Context, problemID string, p problem.Problem, sourceCode string) (*Result, error) {
	script, err := j.assembler.Assemble(sourceCode, p)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := script.Remove(); err != nil {
			// Never mask the primary outcome on cleanup failure.
			j.logger.Warn("working directory cleanup failed",
				zap.String("dir", script.Dir()),
				zap.Error(err))
		}
	}()

	out, err := j.runner.Run(ctx, script.Path)
	if err != nil {
		return nil, fmt.Errorf("isolation runner: %w", err)
	}

	res := Classify(out, j.execTimeout)
	j.observe(problemID, res, out)
	return res, nil
}

// observe emits diagnostics for a finished execution. Purely advisory: it
// never alters the verdict.
func (j *Judge) observe(problemID string, res *Result, out sandbox.Output) {
	executionCount.WithLabelValues(string(res.OverallStatus)).Inc()
	executionTimeHist.WithLabelValues(string(res.OverallStatus)).Observe(out.Duration.Seconds())

	if res.OverallStatus != StatusError {
		return
	}
	category := errorCategory(res, out)
	executionErrorCount.WithLabelValues(category).Inc()
	j.logger.Info("execution error",
		zap.String("problem", problemID),
		zap.String("category", category),
		zap.Int("exitCode", out.ExitCode),
		zap.Bool("timedOut", out.TimedOut))
}
