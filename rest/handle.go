// Package rest is the HTTP boundary: authentication, rate limiting, input
// validation and dispatch into the judging pipeline. Completed runs always
// answer 200; the verdict lives in the body, not the status code.
package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codetrainer/judged/judge"
	"github.com/codetrainer/judged/problem"
)

// LanguagePython is the single supported submission language.
const LanguagePython = "python"

const maxBodyBytes = 1 << 20 // 1 MiB, matches the client contract

// Register registers gateway handlers.
type Register interface {
	Register(*gin.Engine)
}

// ExecuteRequest is the wire shape of POST /execute. Never persisted.
type ExecuteRequest struct {
	ProblemID  string `json:"problemId"`
	Language   string `json:"language"`
	SourceCode string `json:"sourceCode"`
}

type judgeHandle struct {
	worker  judge.Worker
	catalog *problem.Catalog
	auth    *APIKeyAuth
	limiter *SlidingWindow
	logger  *zap.Logger
}

// NewJudgeHandle creates the gateway handler set.
func NewJudgeHandle(worker judge.Worker, catalog *problem.Catalog, auth *APIKeyAuth, limiter *SlidingWindow, logger *zap.Logger) Register {
	return &judgeHandle{
		worker:  worker,
		catalog: catalog,
		auth:    auth,
		limiter: limiter,
		logger:  logger,
	}
}

func (h *judgeHandle) Register(r *gin.Engine) {
	r.GET("/health", h.handleHealth)

	guarded := r.Group("", bodyLimit(), h.auth.Middleware())
	guarded.GET("/problems", h.handleProblems)
	guarded.POST("/execute", h.limiter.Middleware(), h.handleExecute)
}

func bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}

func (h *judgeHandle) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *judgeHandle) handleProblems(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Summaries())
}

func (h *judgeHandle) handleExecute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			judge.ErrorResult("Missing required fields: problemId, language, sourceCode"))
		return
	}
	if req.ProblemID == "" || req.Language == "" || req.SourceCode == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			judge.ErrorResult("Missing required fields: problemId, language, sourceCode"))
		return
	}
	if req.Language != LanguagePython {
		c.AbortWithStatusJSON(http.StatusBadRequest, judge.ErrorResult(
			fmt.Sprintf("Unsupported language: %s. Only %q is supported.", req.Language, LanguagePython)))
		return
	}
	p, ok := h.catalog.Get(req.ProblemID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound,
			judge.ErrorResult("Problem not found: "+req.ProblemID))
		return
	}

	rtCh := h.worker.Submit(c.Request.Context(), &judge.Request{
		ProblemID:  req.ProblemID,
		Problem:    p,
		SourceCode: req.SourceCode,
	})
	rt := <-rtCh
	if rt.Err != nil {
		// Infrastructure fault: log loudly, never leak internals.
		h.logger.Error("execution infrastructure fault",
			zap.String("problem", req.ProblemID),
			zap.Error(rt.Err))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			judge.ErrorResult("Internal server error during execution"))
		return
	}
	c.JSON(http.StatusOK, rt.Result)
}
