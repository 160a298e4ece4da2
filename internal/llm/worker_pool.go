package llm

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned by Generate once the pool has been closed.
var ErrPoolClosed = errors.New("llm: worker pool closed")

type reply struct {
	text string
	err  error
}

type job struct {
	ctx    context.Context
	prompt string
	result chan reply
}

// WorkerPool bounds the number of concurrent calls to the wrapped model.
// Callers queue until a worker is free or their context ends.
type WorkerPool struct {
	model     Model
	workers   int
	jobQueue  chan job
	quit      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWorkerPool wraps model with the given number of workers
func NewWorkerPool(model Model, workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		model:    model,
		workers:  workers,
		jobQueue: make(chan job),
		quit:     make(chan struct{}),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for {
		select {
		case <-wp.quit:
			return
		case j := <-wp.jobQueue:
			if err := j.ctx.Err(); err != nil {
				j.result <- reply{err: err}
				continue
			}
			text, err := wp.model.Generate(j.ctx, j.prompt)
			j.result <- reply{text: text, err: err}
		}
	}
}

func (wp *WorkerPool) Name() string { return wp.model.Name() }

// Generate hands the prompt to the next free worker and waits for its reply.
func (wp *WorkerPool) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-wp.quit:
		return "", ErrPoolClosed
	default:
	}

	j := job{ctx: ctx, prompt: prompt, result: make(chan reply, 1)}
	select {
	case wp.jobQueue <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-wp.quit:
		return "", ErrPoolClosed
	}

	select {
	case r := <-j.result:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the workers. In-flight calls finish; queued callers get ErrPoolClosed.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.quit)
	})
}
