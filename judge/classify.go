package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codetrainer/judged/sandbox"
)

const (
	// Enough stderr to show the exception type and message without
	// echoing a full stack trace back to the caller.
	stderrTailLines = 3
	// Bound on the raw-output excerpt included in parse errors.
	rawOutputExcerptLen = 500
)

// Classify maps the isolation runner's raw outcome onto the verdict
// contract. A clean exit with a well-formed verdict on stdout passes through
// verbatim; the harness owns comparison, the classifier only handles the
// meta failure modes around it.
func Classify(out sandbox.Output, execTimeout time.Duration) *Result {
	if out.TimedOut {
		secs := int(execTimeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		res := ErrorResult(fmt.Sprintf("Time Limit Exceeded (%d seconds)", secs))
		res.Runtime = fmt.Sprintf("%dms", secs*1000)
		return res
	}

	if out.ExitCode != 0 {
		stderr := strings.TrimSpace(string(out.Stderr))
		if stderr != "" {
			return ErrorResult(stderrTail(stderr))
		}
		return ErrorResult(fmt.Sprintf("Execution failed: exit status %d", out.ExitCode))
	}

	var res Result
	raw := bytes.TrimSpace(out.Stdout)
	if err := json.Unmarshal(raw, &res); err != nil || !res.OverallStatus.Valid() {
		return ErrorResult(fmt.Sprintf(
			"Output parsing error. Your code may have printed unexpected output.\nRaw output: %s",
			excerpt(raw)))
	}
	if res.TestResults == nil {
		res.TestResults = []TestResult{}
	}
	return &res
}

func stderrTail(stderr string) string {
	lines := strings.Split(stderr, "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "\n")
}

func excerpt(raw []byte) string {
	if len(raw) > rawOutputExcerptLen {
		raw = raw[:rawOutputExcerptLen]
	}
	return string(raw)
}

// errorCategory buckets an error verdict for diagnostics (logs and metrics)
// only; it never changes what is returned to the caller.
func errorCategory(res *Result, out sandbox.Output) string {
	switch {
	case out.TimedOut:
		return "timeout"
	case res.RuntimeError == nil:
		return "unknown"
	case strings.HasPrefix(*res.RuntimeError, "Output parsing error"):
		return "parse_error"
	case strings.HasPrefix(*res.RuntimeError, "Execution failed"):
		return "exec_failed"
	}
	if name := exceptionName(*res.RuntimeError); name != "" {
		return name
	}
	return "unknown"
}

// exceptionName extracts a python exception type such as "TypeError" or
// "ImportError" from the leading line of a runtime error message.
func exceptionName(msg string) string {
	line := msg
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
		// stderr tails end with "SomeError: message"; prefer the last line.
		if j := strings.LastIndexByte(msg, '\n'); j >= 0 {
			line = msg[j+1:]
		}
	}
	name, _, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return ""
	}
	if strings.HasSuffix(name, "Error") || strings.HasSuffix(name, "Exception") ||
		name == "KeyboardInterrupt" || name == "SystemExit" {
		return name
	}
	return ""
}
