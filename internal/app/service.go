// Package service wires the bias engine, report store, evaluation queue,
// worker pool and deduper into one application service.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/biasaudit/internal/adapters/dataset"
	"github.com/okian/biasaudit/internal/adapters/mq/queue"
	"github.com/okian/biasaudit/internal/adapters/mq/worker"
	"github.com/okian/biasaudit/internal/adapters/repository"
	"github.com/okian/biasaudit/internal/domain/bias"
	"github.com/okian/biasaudit/internal/domain/dedupe"
	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
	"github.com/okian/biasaudit/pkg/metrics"
)

// EvaluationRequest is a dataset plus the subgroups to evaluate.
type EvaluationRequest struct {
	// RequestID makes a submission idempotent. Empty disables dedupe.
	RequestID string `json:"request_id,omitempty"`
	dataset.Payload
	// Subgroups to evaluate. Empty means every declared subgroup.
	Subgroups       []string `json:"subgroups,omitempty"`
	MinSubgroupSize *int     `json:"min_subgroup_size,omitempty"`
}

// SubmitResult identifies an accepted submission.
type SubmitResult struct {
	ID        string
	Duplicate bool
}

// Service is the application facade used by the HTTP layer.
type Service struct {
	mu sync.RWMutex

	backend repository.Store
	store   repository.Store
	engine  *bias.Engine
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	deduper dedupe.Deduper

	workerCount     int
	queueSize       int
	dedupeSize      int
	parallelism     int
	minSubgroupSize int
	labelThreshold  float64
	maxListLimit    int

	started bool
	logger  logger.Logger
	now     func() time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of evaluation workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize sets the evaluation queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithDedupeSize bounds the request id memory. Zero keeps every id.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.dedupeSize = n
		}
	}
}

// WithParallelism bounds concurrent subgroup evaluation per job.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithMinSubgroupSize sets the default minimum flagged records per subgroup.
func WithMinSubgroupSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.minSubgroupSize = n
		}
	}
}

// WithLabelThreshold sets the default soft label threshold.
func WithLabelThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.labelThreshold = t
		}
	}
}

// WithMaxListLimit caps the number of reports returned by Reports.
func WithMaxListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxListLimit = n
		}
	}
}

// WithStore sets the report store. It is instrumented on Start.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.backend = st
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service. Call Start before use.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1000,
		dedupeSize:      10000,
		parallelism:     runtime.NumCPU(),
		minSubgroupSize: bias.DefaultMinSubgroupSize,
		labelThreshold:  bias.DefaultLabelThreshold,
		maxListLimit:    100,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and starts the workers. Workers run until ctx
// ends or Stop drains them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.backend == nil {
		s.backend = repository.NewMemoryStore()
	}
	s.store = repository.Instrument(s.backend)

	s.engine = bias.NewEngine(
		bias.WithParallelism(s.parallelism),
		bias.WithLogger(s.logger.Named("engine")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, &engineEvaluator{s: s}, s.store,
		worker.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("parallelism", s.parallelism),
	)
	return nil
}

// Stop drains queued evaluations and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown workers: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.logger.Info(ctx, "service stopped")
	return errors.Join(errs...)
}

// Submit validates req and queues it. A repeated RequestID returns the
// report id of the first submission with duplicate set.
func (s *Service) Submit(ctx context.Context, req EvaluationRequest) (SubmitResult, error) { //nolint:gocritic // hugeParam
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return SubmitResult{}, ErrNotStarted
	}

	job, err := s.prepare(req)
	if err != nil {
		return SubmitResult{}, err
	}

	if req.RequestID != "" {
		if id, seen := s.deduper.Claim(ctx, req.RequestID, job.ReportID); seen {
			metrics.RecordEvaluationDuplicate()
			s.logger.Debug(ctx, "duplicate submission",
				logger.String("request_id", req.RequestID),
				logger.String("report_id", id),
			)
			return SubmitResult{ID: id, Duplicate: true}, nil
		}
	}

	pending := model.Report{
		ID:          job.ReportID,
		RequestID:   job.RequestID,
		Status:      model.StatusPending,
		LabelField:  job.Dataset.LabelField,
		RecordCount: job.Dataset.Len(),
		Results:     []model.SubgroupMetricResult{},
		CreatedAt:   job.SubmittedAt,
	}
	if err := s.store.Save(ctx, pending); err != nil {
		s.release(ctx, req.RequestID)
		return SubmitResult{}, fmt.Errorf("save pending report: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.release(ctx, req.RequestID)
		s.reject(ctx, pending, err)
		if errors.Is(err, queue.ErrQueueFull) {
			return SubmitResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return SubmitResult{}, fmt.Errorf("enqueue evaluation: %w", err)
	}

	metrics.RecordEvaluationSubmitted()
	return SubmitResult{ID: job.ReportID}, nil
}

// Evaluate computes and stores a report synchronously.
func (s *Service) Evaluate(ctx context.Context, req EvaluationRequest) (model.Report, error) { //nolint:gocritic // hugeParam
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Report{}, ErrNotStarted
	}

	job, err := s.prepare(req)
	if err != nil {
		return model.Report{}, err
	}
	return s.evaluateNow(ctx, job)
}

// EvaluateDataset is Evaluate for an already loaded dataset. A nil
// minSubgroupSize uses the service default.
func (s *Service) EvaluateDataset(ctx context.Context, ds model.Dataset, subgroups []string, minSubgroupSize *int) (model.Report, error) { //nolint:gocritic // hugeParam
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Report{}, ErrNotStarted
	}

	job, err := s.newJob(ds, subgroups, minSubgroupSize)
	if err != nil {
		return model.Report{}, err
	}
	return s.evaluateNow(ctx, job)
}

func (s *Service) evaluateNow(ctx context.Context, job model.Job) (model.Report, error) { //nolint:gocritic // hugeParam
	metrics.RecordEvaluationSubmitted()
	report, err := s.run(ctx, job)
	if err != nil {
		return model.Report{}, err
	}
	if err := s.store.Save(ctx, report); err != nil {
		return model.Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// Report returns a stored report or repository.ErrNotFound.
func (s *Service) Report(ctx context.Context, id string) (model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Report{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Reports lists reports newest first. limit is clamped to the configured
// maximum; limit <= 0 is an error.
func (s *Service) Reports(ctx context.Context, limit int) ([]model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if limit > s.maxListLimit {
		limit = s.maxListLimit
	}
	return s.store.List(ctx, limit)
}

// MaxListLimit returns the cap applied by Reports.
func (s *Service) MaxListLimit() int {
	return s.maxListLimit
}

// GetStats returns service statistics and refreshes the queue gauges.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"parallelism":      s.parallelism,
		"minSubgroupSize":  s.minSubgroupSize,
		"labelThreshold":   s.labelThreshold,
		"queueLength":      0,
		"reports":          0,
		"processed":        int64(0),
		"dedupeEntries":    int64(0),
		"queueUtilization": 0.0,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	qlen := s.queue.Len(ctx)
	utilization := float64(qlen) / float64(s.queue.Capacity())
	stats["queueLength"] = qlen
	stats["reports"] = s.store.Count(ctx)
	stats["processed"] = s.pool.Processed()
	stats["dedupeEntries"] = s.deduper.Size()
	stats["queueUtilization"] = utilization

	metrics.UpdateQueueSize(qlen)
	metrics.UpdateQueueUtilization(utilization)
	return stats
}

// prepare turns a request into a job, rejecting unknown subgroups up front
// so the caller gets a synchronous error.
func (s *Service) prepare(req EvaluationRequest) (model.Job, error) { //nolint:gocritic // hugeParam
	ds, err := dataset.FromRequest(req.Payload, s.labelThreshold)
	if err != nil {
		return model.Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	job, err := s.newJob(ds, req.Subgroups, req.MinSubgroupSize)
	if err != nil {
		return model.Job{}, err
	}
	job.RequestID = req.RequestID
	return job, nil
}

func (s *Service) newJob(ds model.Dataset, requested []string, minSubgroupSize *int) (model.Job, error) { //nolint:gocritic // hugeParam
	if ds.Len() == 0 {
		return model.Job{}, fmt.Errorf("%w: no records", ErrInvalidRequest)
	}

	subgroups := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		switch {
		case strings.TrimSpace(id) == "":
			return model.Job{}, fmt.Errorf("%w: %w", ErrInvalidRequest, bias.ErrEmptySubgroupID)
		case !ds.HasSubgroup(id):
			return model.Job{}, fmt.Errorf("%w: %w: %q", ErrInvalidRequest, bias.ErrUnknownSubgroup, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		subgroups = append(subgroups, id)
	}

	minSize := s.minSubgroupSize
	if minSubgroupSize != nil {
		if *minSubgroupSize < 0 {
			return model.Job{}, fmt.Errorf("%w: negative min_subgroup_size", ErrInvalidRequest)
		}
		minSize = *minSubgroupSize
	}

	return model.Job{
		ReportID:  uuid.NewString(),
		Dataset:   ds,
		Subgroups: subgroups,
		Options: model.EvaluationOptions{
			MinSubgroupSize: minSize,
			SummaryPower:    bias.DefaultSummaryPower,
			OverallWeight:   bias.DefaultOverallWeight,
		},
		SubmittedAt: s.now().UTC(),
	}, nil
}

// run evaluates job and builds its completed report.
func (s *Service) run(ctx context.Context, job model.Job) (model.Report, error) { //nolint:gocritic // hugeParam
	start := time.Now()
	selected, skipped := bias.SelectSubgroups(job.Dataset, job.Subgroups, job.Options.MinSubgroupSize)

	results, err := s.engine.ComputeBiasMetrics(ctx, job.Dataset, selected)
	if err != nil {
		metrics.RecordEvaluationFailed()
		metrics.RecordErrorByComponent("engine", "evaluation")
		return model.Report{}, fmt.Errorf("compute bias metrics: %w", err)
	}
	overall, err := bias.OverallAUC(job.Dataset)
	if err != nil {
		metrics.RecordEvaluationFailed()
		metrics.RecordErrorByComponent("engine", "evaluation")
		return model.Report{}, fmt.Errorf("compute overall auc: %w", err)
	}
	summary := bias.Summarize(overall, results, job.Options.SummaryPower, job.Options.OverallWeight)

	for _, r := range results {
		if !r.SubgroupAUC.IsDefined() {
			metrics.RecordUndefinedAUC("subgroup_auc")
		}
		if !r.BPSNAUC.IsDefined() {
			metrics.RecordUndefinedAUC("bpsn_auc")
		}
		if !r.BNSPAUC.IsDefined() {
			metrics.RecordUndefinedAUC("bnsp_auc")
		}
	}
	elapsed := time.Since(start)
	metrics.RecordEvaluationCompleted(job.Dataset.Len(), len(results), len(skipped), float64(elapsed.Milliseconds()))

	if results == nil {
		results = []model.SubgroupMetricResult{}
	}
	completed := s.now().UTC()
	s.logger.Info(ctx, "evaluation completed",
		logger.String("report_id", job.ReportID),
		logger.Int("records", job.Dataset.Len()),
		logger.Int("subgroups", len(results)),
		logger.Int("skipped", len(skipped)),
		logger.String("overall_auc", overall.String()),
		logger.Duration("elapsed", elapsed),
	)
	return model.Report{
		ID:          job.ReportID,
		RequestID:   job.RequestID,
		Status:      model.StatusCompleted,
		LabelField:  job.Dataset.LabelField,
		RecordCount: job.Dataset.Len(),
		OverallAUC:  overall,
		Summary:     &summary,
		Results:     results,
		Skipped:     skipped,
		CreatedAt:   job.SubmittedAt,
		CompletedAt: &completed,
	}, nil
}

func (s *Service) release(ctx context.Context, requestID string) {
	if requestID != "" {
		s.deduper.Release(ctx, requestID)
	}
}

// reject marks a pending report that never reached the queue as failed.
func (s *Service) reject(ctx context.Context, r model.Report, cause error) { //nolint:gocritic // hugeParam
	now := s.now().UTC()
	r.Status = model.StatusFailed
	r.Error = cause.Error()
	r.CompletedAt = &now
	if err := s.store.Save(ctx, r); err != nil {
		s.logger.Error(ctx, "failed to save rejected report",
			logger.String("report_id", r.ID),
			logger.Error(err),
		)
	}
}

// engineEvaluator adapts the service to worker.Evaluator.
type engineEvaluator struct {
	s *Service
}

func (e *engineEvaluator) Evaluate(ctx context.Context, job model.Job) (model.Report, error) { //nolint:gocritic // hugeParam
	return e.s.run(ctx, job)
}
