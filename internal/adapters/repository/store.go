// Package repository persists bias reports.
package repository

import (
	"context"
	"time"

	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/metrics"
)

// Store provides read/write access to reports.
type Store interface {
	// Save inserts or replaces the report with r.ID.
	Save(ctx context.Context, r model.Report) error

	// Get returns the report with id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Report, error)

	// List returns up to limit reports, newest first. limit must be positive.
	List(ctx context.Context, limit int) ([]model.Report, error)

	// Count returns the number of stored reports.
	Count(ctx context.Context) int

	Close() error
}

// Instrument wraps s so every operation records its latency and the
// number of stored reports.
func Instrument(s Store) Store {
	return &instrumented{Store: s}
}

type instrumented struct {
	Store
}

func (i *instrumented) Save(ctx context.Context, r model.Report) error { //nolint:gocritic // hugeParam
	defer observe("save", time.Now())
	if err := i.Store.Save(ctx, r); err != nil {
		metrics.RecordErrorByComponent("store", "save")
		return err
	}
	metrics.UpdateReportsStored(i.Store.Count(ctx))
	return nil
}

func (i *instrumented) Get(ctx context.Context, id string) (model.Report, error) {
	defer observe("get", time.Now())
	return i.Store.Get(ctx, id)
}

func (i *instrumented) List(ctx context.Context, limit int) ([]model.Report, error) {
	defer observe("list", time.Now())
	return i.Store.List(ctx, limit)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
