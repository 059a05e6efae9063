package judge

import (
	"context"
	"sync"

	"github.com/codetrainer/judged/problem"
)

const maxWaiting = 512

// Request is a single submission to judge.
type Request struct {
	ProblemID  string
	Problem    problem.Problem
	SourceCode string
}

// Response carries the verdict or the infrastructure error for one request.
type Response struct {
	Result *Result
	Err    error
}

// Worker bounds concurrent sandbox executions with a fixed parallelism.
type Worker interface {
	// Start starts worker loops
	Start()
	// Submit queues a request and returns the channel carrying its response
	Submit(context.Context, *Request) <-chan Response
	// Shutdown waits for in-flight executions to finish
	Shutdown()
}

type worker struct {
	judge       *Judge
	parallelism int

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// NewWorker creates a worker pool over the given judge.
func NewWorker(j *Judge, parallelism int) Worker {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &worker{
		judge:       j,
		parallelism: parallelism,
	}
}

func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.workCh = make(chan workRequest, maxWaiting)
		w.done = make(chan struct{})
		w.wg.Add(w.parallelism)
		for i := 0; i < w.parallelism; i++ {
			go w.loop()
		}
	})
}

func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	select {
	case w.workCh <- workRequest{Request: req, Context: ctx, resultCh: ch}:
	case <-ctx.Done():
		ch <- Response{Err: ctx.Err()}
	}
	return ch
}

func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req, ok := <-w.workCh:
			if !ok {
				return
			}
			res, err := w.judge.Execute(req.Context, req.ProblemID, req.Problem, req.SourceCode)
			req.resultCh <- Response{Result: res, Err: err}
		case <-w.done:
			return
		}
	}
}
