package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/xiaot623/gogo/segmenter/internal/domain"
	"github.com/xiaot623/gogo/segmenter/internal/invoker"
)

// JobFunc is a unit of work run on the worker goroutine.
type JobFunc func(ctx context.Context, runner invoker.Runner) error

const (
	jobPending int32 = iota
	jobClaimed
)

type job struct {
	ctx   context.Context
	fn    JobFunc
	done  chan error
	state atomic.Int32
}

// claim marks the job as owned by the caller. Exactly one of the worker or
// the submitter wins; the loser must not touch the job again.
func (j *job) claim() bool {
	return j.state.CompareAndSwap(jobPending, jobClaimed)
}

// Worker runs jobs one at a time on a dedicated goroutine. A job covers the
// tool invocation and the artifact lookup that follows it, so a run's output
// is resolved before the next run starts.
type Worker struct {
	runner  invoker.Runner
	jobs    chan *job
	stopped chan struct{}
}

// NewWorker creates a worker. queueSize bounds how many submissions may wait
// while another job is running.
func NewWorker(runner invoker.Runner, queueSize int) *Worker {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Worker{
		runner:  runner,
		jobs:    make(chan *job, queueSize),
		stopped: make(chan struct{}),
	}
}

// Run processes jobs until ctx is done. A running job has its context
// cancelled when ctx is done, and queued jobs fail with
// domain.ErrWorkerStopped. It must be called at most once.
func (w *Worker) Run(ctx context.Context) error {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-w.jobs:
			w.execute(ctx, j)
		}
	}
}

// Stopped is closed when Run returns.
func (w *Worker) Stopped() <-chan struct{} {
	return w.stopped
}

func (w *Worker) stop() {
	close(w.stopped)
	for {
		select {
		case j := <-w.jobs:
			if j.claim() {
				j.done <- domain.ErrWorkerStopped
			}
		default:
			return
		}
	}
}

func (w *Worker) execute(workerCtx context.Context, j *job) {
	// The submitter already gave up.
	if !j.claim() {
		return
	}
	if workerCtx.Err() != nil {
		j.done <- domain.ErrWorkerStopped
		return
	}
	if err := j.ctx.Err(); err != nil {
		j.done <- fmt.Errorf("waiting for worker: %w", err)
		return
	}

	runCtx, cancel := context.WithCancelCause(j.ctx)
	defer cancel(nil)
	stopJob := context.AfterFunc(workerCtx, func() {
		cancel(domain.ErrWorkerStopped)
	})
	defer stopJob()

	err := j.fn(runCtx, w.runner)
	if err != nil {
		if errors.Is(context.Cause(runCtx), domain.ErrWorkerStopped) {
			err = fmt.Errorf("%w: %w", domain.ErrWorkerStopped, err)
		}
		log.Debugf("Worker job failed: %v", err)
	}
	j.done <- err
}

// Do runs fn on the worker and waits for it. If ctx is done before the worker
// picks the job up, Do returns without running fn. Once fn has started, Do
// waits for it to return; fn sees ctx cancellation through its own context.
func (w *Worker) Do(ctx context.Context, fn JobFunc) error {
	j := &job{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker: %w", ctx.Err())
	case <-w.stopped:
		return domain.ErrWorkerStopped
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
	case <-w.stopped:
	}

	if j.claim() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("waiting for worker: %w", err)
		}
		return domain.ErrWorkerStopped
	}
	return <-j.done
}

// Submit runs a single tool invocation on the worker.
func (w *Worker) Submit(ctx context.Context, name string, args ...string) (*invoker.Result, error) {
	var res *invoker.Result
	err := w.Do(ctx, func(ctx context.Context, runner invoker.Runner) error {
		var err error
		res, err = runner.Run(ctx, name, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
