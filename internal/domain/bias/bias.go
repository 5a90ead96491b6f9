// Package bias computes AUC-based unintended bias metrics per identity
// subgroup of a scored dataset.
package bias

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParallelism bounds how many subgroups are evaluated concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine computes subgroup bias metrics. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	parallelism int
	logger      logger.Logger
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		parallelism: runtime.NumCPU(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubgroupAUC measures how well scores separate toxic from non-toxic
// records inside the subgroup alone.
func (e *Engine) SubgroupAUC(ds model.Dataset, subgroup string) (model.AUC, error) {
	if err := checkSubgroup(ds, subgroup); err != nil {
		return model.UndefinedAUC(), err
	}
	return recordsAUC(ds.Filter(func(r model.Record) bool { return r.In(subgroup) }))
}

// BPSNAUC compares non-toxic subgroup records with toxic background
// records. A low value means non-toxic subgroup content scores like toxic
// background content (false positive bias).
func (e *Engine) BPSNAUC(ds model.Dataset, subgroup string) (model.AUC, error) {
	if err := checkSubgroup(ds, subgroup); err != nil {
		return model.UndefinedAUC(), err
	}
	subgroupNegative := ds.Filter(func(r model.Record) bool { return r.In(subgroup) && !r.Label })
	backgroundPositive := ds.Filter(func(r model.Record) bool { return !r.In(subgroup) && r.Label })
	return recordsAUC(append(subgroupNegative, backgroundPositive...))
}

// BNSPAUC compares toxic subgroup records with non-toxic background
// records. A low value means toxic subgroup content scores too low
// (false negative bias).
func (e *Engine) BNSPAUC(ds model.Dataset, subgroup string) (model.AUC, error) {
	if err := checkSubgroup(ds, subgroup); err != nil {
		return model.UndefinedAUC(), err
	}
	subgroupPositive := ds.Filter(func(r model.Record) bool { return r.In(subgroup) && r.Label })
	backgroundNegative := ds.Filter(func(r model.Record) bool { return !r.In(subgroup) && !r.Label })
	return recordsAUC(append(subgroupPositive, backgroundNegative...))
}

// ComputeBiasMetrics returns one result per distinct subgroup, sorted by
// ascending subgroup AUC. Subgroups with an undefined subgroup AUC come
// last; ties are ordered by subgroup id.
//
// Minimum-size filtering is the caller's job (see SelectSubgroups); every
// requested subgroup is reported.
func (e *Engine) ComputeBiasMetrics(ctx context.Context, ds model.Dataset, subgroups []string) ([]model.SubgroupMetricResult, error) {
	ids, err := distinctSubgroups(ds, subgroups)
	if err != nil {
		return nil, err
	}
	if err := validateScores(ds); err != nil {
		return nil, err
	}

	results := make([]model.SubgroupMetricResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("subgroup %q: %w", id, err)
			}
			res, err := e.subgroupResult(ds, id)
			if err != nil {
				return fmt.Errorf("subgroup %q: %w", id, err)
			}
			results[i] = res
			e.logger.Debug(gctx, "subgroup metrics computed",
				logger.String("subgroup", id),
				logger.Int("size", res.SubgroupSize),
				logger.String("subgroup_auc", res.SubgroupAUC.String()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortResults(results)
	return results, nil
}

// SortResults orders results by ascending subgroup AUC, undefined last,
// ties by subgroup id.
func SortResults(results []model.SubgroupMetricResult) {
	slices.SortStableFunc(results, func(a, b model.SubgroupMetricResult) int {
		if c := a.SubgroupAUC.Compare(b.SubgroupAUC); c != 0 {
			return c
		}
		return strings.Compare(a.Subgroup, b.Subgroup)
	})
}

func (e *Engine) subgroupResult(ds model.Dataset, id string) (model.SubgroupMetricResult, error) {
	res := model.SubgroupMetricResult{
		Subgroup:     id,
		SubgroupSize: ds.SubgroupSize(id),
	}
	var err error
	if res.SubgroupAUC, err = e.SubgroupAUC(ds, id); err != nil {
		return res, err
	}
	if res.BPSNAUC, err = e.BPSNAUC(ds, id); err != nil {
		return res, err
	}
	if res.BNSPAUC, err = e.BNSPAUC(ds, id); err != nil {
		return res, err
	}
	return res, nil
}

func checkSubgroup(ds model.Dataset, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptySubgroupID
	}
	if !ds.HasSubgroup(id) {
		return fmt.Errorf("%w: %q", ErrUnknownSubgroup, id)
	}
	return nil
}

func distinctSubgroups(ds model.Dataset, subgroups []string) ([]string, error) {
	seen := make(map[string]struct{}, len(subgroups))
	ids := make([]string, 0, len(subgroups))
	for _, id := range subgroups {
		if err := checkSubgroup(ds, id); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func validateScores(ds model.Dataset) error {
	for i, r := range ds.Records {
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			return fmt.Errorf("%w: record %d", ErrInvalidScore, i)
		}
	}
	return nil
}
