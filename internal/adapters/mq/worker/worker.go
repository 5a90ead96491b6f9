// Package worker runs queued evaluations and persists their reports.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
	"github.com/okian/biasaudit/pkg/metrics"
)

// ErrShutdownTimeout is returned when workers do not drain in time.
var ErrShutdownTimeout = errors.New("worker shutdown timed out")

// Evaluator turns a job into a completed report.
type Evaluator interface {
	Evaluate(ctx context.Context, job model.Job) (model.Report, error)
}

// Saver persists reports.
type Saver interface {
	Save(ctx context.Context, r model.Report) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker evaluates jobs from a Queue and saves the result.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	saver     Saver
	name      string

	processed atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, evaluator Evaluator, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		evaluator: evaluator,
		saver:     saver,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("report_id", job.ReportID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker. It is safe to call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Processed returns the number of jobs this worker has finished.
func (w *InMemoryWorker) Processed() int64 {
	return w.processed.Load()
}

// process evaluates one job. A failed evaluation is still saved, as a
// failed report, so clients polling the id see the outcome.
func (w *InMemoryWorker) process(ctx context.Context, job model.Job) error { //nolint:gocritic // hugeParam: jobs travel by value over the channel
	defer w.processed.Add(1)

	report, evalErr := w.evaluator.Evaluate(ctx, job)
	if evalErr != nil {
		metrics.RecordErrorByComponent("worker", "evaluate")
		report = failedReport(job, evalErr)
	}

	if err := w.saver.Save(ctx, report); err != nil {
		metrics.RecordErrorByComponent("worker", "save")
		return fmt.Errorf("save report %s: %w", job.ReportID, err)
	}
	if evalErr != nil {
		return fmt.Errorf("evaluate report %s: %w", job.ReportID, evalErr)
	}

	w.logger.Debug(ctx, "report saved",
		logger.String("report_id", report.ID),
		logger.Int("subgroups", len(report.Results)),
	)
	return nil
}

func failedReport(job model.Job, err error) model.Report { //nolint:gocritic // hugeParam
	now := time.Now().UTC()
	return model.Report{
		ID:          job.ReportID,
		RequestID:   job.RequestID,
		Status:      model.StatusFailed,
		LabelField:  job.Dataset.LabelField,
		RecordCount: job.Dataset.Len(),
		Error:       err.Error(),
		CreatedAt:   job.SubmittedAt,
		CompletedAt: &now,
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 means one worker per CPU.
func NewPool(workerCount int, q Queue, evaluator Evaluator, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, evaluator, saver, workerOpts...)
	}
	probe := &InMemoryWorker{}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.logger == nil {
		probe.logger = logger.Get()
	}
	pool.logger = probe.logger.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns the number of jobs finished by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue and waits for the workers to drain it. When
// ctx ends first the workers are stopped and queued jobs are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			for _, rest := range p.workers {
				rest.stop()
			}
			return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
