// Package judge turns (problem, untrusted source) into a structured verdict:
// it assembles the harness, runs it under the isolation boundary, and
// classifies the raw outcome into the ExecutionResult wire contract.
package judge

// Status is the overall verdict of one execution.
type Status string

const (
	// StatusPass: every test case matched.
	StatusPass Status = "pass"
	// StatusFail: execution completed but at least one case did not match.
	StatusFail Status = "fail"
	// StatusError: execution could not complete (timeout, crash, bad output).
	StatusError Status = "error"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusError:
		return true
	}
	return false
}

// TestResult reports one judged test case, derived inside the sandbox.
type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Passed         bool   `json:"passed"`
}

// Result is the verdict returned to the caller. Every terminal outcome of a
// request, including rate limiting and validation failures, carries this
// shape so clients never need to parse HTTP status codes.
type Result struct {
	CompilationSuccess bool         `json:"compilationSuccess"`
	RuntimeError       *string      `json:"runtimeError"`
	TestResults        []TestResult `json:"testResults"`
	OverallStatus      Status       `json:"overallStatus"`
	Runtime            string       `json:"runtime"`
	Memory             string       `json:"memory"`
}

// ErrorResult builds an error-kind verdict with the given human readable
// message and no test results.
func ErrorResult(msg string) *Result {
	return &Result{
		CompilationSuccess: false,
		RuntimeError:       &msg,
		TestResults:        []TestResult{},
		OverallStatus:      StatusError,
		Runtime:            "0ms",
		Memory:             "0MB",
	}
}
