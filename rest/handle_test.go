package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/codetrainer/judged/judge"
	"github.com/codetrainer/judged/problem"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockWorker returns a canned response and counts submissions.
type mockWorker struct {
	response judge.Response
	calls    atomic.Int64
}

func (m *mockWorker) Start()    {}
func (m *mockWorker) Shutdown() {}

func (m *mockWorker) Submit(_ context.Context, _ *judge.Request) <-chan judge.Response {
	m.calls.Add(1)
	ch := make(chan judge.Response, 1)
	ch <- m.response
	return ch
}

func passResponse() judge.Response {
	return judge.Response{
		Result: &judge.Result{
			CompilationSuccess: true,
			TestResults: []judge.TestResult{
				{Input: "a = 1, b = 2", ExpectedOutput: "3", ActualOutput: "3", Passed: true},
			},
			OverallStatus: judge.StatusPass,
			Runtime:       "1ms",
			Memory:        "0MB",
		},
	}
}

func testCatalog(t *testing.T) *problem.Catalog {
	t.Helper()
	c, err := problem.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

type routerConfig struct {
	apiKey    string
	rateLimit int
	worker    *mockWorker
}

func newTestRouter(t *testing.T, cfg routerConfig) (*gin.Engine, *mockWorker) {
	t.Helper()
	if cfg.worker == nil {
		cfg.worker = &mockWorker{response: passResponse()}
	}
	if cfg.rateLimit == 0 {
		cfg.rateLimit = 1000
	}
	r := gin.New()
	h := NewJudgeHandle(
		cfg.worker,
		testCatalog(t),
		NewAPIKeyAuth(cfg.apiKey),
		NewSlidingWindow(cfg.rateLimit, time.Minute, 0),
		zaptest.NewLogger(t),
	)
	h.Register(r)
	return r, cfg.worker
}

func executeBody(t *testing.T, problemID, language, source string) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(ExecuteRequest{ProblemID: problemID, Language: language, SourceCode: source})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(b)
}

func doExecute(r *gin.Engine, body *bytes.Reader, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/execute", body)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) judge.Result {
	t.Helper()
	var res judge.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v\nbody: %s", err, rec.Body.String())
	}
	return res
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, routerConfig{apiKey: "secret"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"]); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}
}

func TestProblemsListsMetadataOnly(t *testing.T) {
	r, _ := newTestRouter(t, routerConfig{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/problems", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []problem.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("empty problem list")
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("expected")) || bytes.Contains(rec.Body.Bytes(), []byte("testCases")) {
		t.Error("problem list leaks test data")
	}
}

func TestProblemsRequiresAPIKey(t *testing.T) {
	r, _ := newTestRouter(t, routerConfig{apiKey: "secret"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/problems", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/problems", nil)
	req.Header.Set(apiKeyHeader, "secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", rec.Code)
	}
}

func TestExecutePassThrough(t *testing.T) {
	r, w := newTestRouter(t, routerConfig{})

	rec := doExecute(r, executeBody(t, "tutorial-add-two", LanguagePython, "def addTwo(a, b):\n    return a + b\n"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeResult(t, rec)
	if res.OverallStatus != judge.StatusPass {
		t.Errorf("expected pass, got %q", res.OverallStatus)
	}
	if got := w.calls.Load(); got != 1 {
		t.Errorf("expected 1 dispatch, got %d", got)
	}
}

func TestExecuteValidation(t *testing.T) {
	for _, tc := range []struct {
		name       string
		problemID  string
		language   string
		sourceCode string
		wantCode   int
		wantMsg    string
	}{
		{"missing problemId", "", LanguagePython, "x = 1", http.StatusBadRequest, "Missing required fields"},
		{"missing language", "two-sum", "", "x = 1", http.StatusBadRequest, "Missing required fields"},
		{"missing source", "two-sum", LanguagePython, "", http.StatusBadRequest, "Missing required fields"},
		{"unsupported language", "two-sum", "javascript", "x = 1", http.StatusBadRequest, "Unsupported language: javascript"},
		{"unknown problem", "no-such-problem", LanguagePython, "x = 1", http.StatusNotFound, "Problem not found: no-such-problem"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, w := newTestRouter(t, routerConfig{})
			rec := doExecute(r, executeBody(t, tc.problemID, tc.language, tc.sourceCode), "")
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rec.Code, rec.Body.String())
			}
			res := decodeResult(t, rec)
			if res.OverallStatus != judge.StatusError {
				t.Errorf("expected error-kind body, got %q", res.OverallStatus)
			}
			if res.RuntimeError == nil || !bytes.Contains([]byte(*res.RuntimeError), []byte(tc.wantMsg)) {
				t.Errorf("expected message containing %q, got %v", tc.wantMsg, res.RuntimeError)
			}
			if got := w.calls.Load(); got != 0 {
				t.Errorf("invalid request reached the pipeline %d times", got)
			}
		})
	}
}

func TestExecuteMalformedJSON(t *testing.T) {
	r, w := newTestRouter(t, routerConfig{})
	rec := doExecute(r, bytes.NewReader([]byte("{not json")), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := w.calls.Load(); got != 0 {
		t.Errorf("malformed request reached the pipeline %d times", got)
	}
}

func TestExecuteUnauthorizedNeverDispatches(t *testing.T) {
	r, w := newTestRouter(t, routerConfig{apiKey: "secret"})

	rec := doExecute(r, executeBody(t, "tutorial-add-two", LanguagePython, "x = 1"), "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := w.calls.Load(); got != 0 {
		t.Errorf("unauthenticated request reached the pipeline %d times", got)
	}
}

func TestExecuteInfrastructureFault(t *testing.T) {
	w := &mockWorker{response: judge.Response{Err: fmt.Errorf("cannot create temp dir")}}
	r, _ := newTestRouter(t, routerConfig{worker: w})

	rec := doExecute(r, executeBody(t, "tutorial-add-two", LanguagePython, "x = 1"), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.RuntimeError == nil || *res.RuntimeError != "Internal server error during execution" {
		t.Errorf("internal error text leaked or missing: %v", res.RuntimeError)
	}
}

func TestExecuteRateLimit(t *testing.T) {
	r, w := newTestRouter(t, routerConfig{rateLimit: 30})

	for i := 0; i < 30; i++ {
		rec := doExecute(r, executeBody(t, "tutorial-add-two", LanguagePython, "x = 1"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doExecute(r, executeBody(t, "tutorial-add-two", LanguagePython, "x = 1"), "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the 31st request, got %d", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.OverallStatus != judge.StatusError {
		t.Errorf("rate limit body must be error-kind, got %q", res.OverallStatus)
	}
	if res.RuntimeError == nil || *res.RuntimeError != rateLimitMessage {
		t.Errorf("unexpected rate limit message: %v", res.RuntimeError)
	}
	if got := w.calls.Load(); got != 30 {
		t.Errorf("expected exactly 30 dispatches, got %d", got)
	}
}
