// Package dataset decodes scored, labeled records from CSV, JSON lines
// and API payloads into a model.Dataset.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/biasaudit/internal/domain/bias"
	"github.com/okian/biasaudit/internal/domain/model"
)

// Options describes how columns map onto records.
type Options struct {
	LabelField string
	ScoreField string
	// SubgroupFields lists subgroup columns. Empty means every column that
	// is not the label, the score, "id" or listed in IgnoreFields.
	SubgroupFields []string
	IgnoreFields   []string
	// Threshold binarizes numeric labels and memberships.
	Threshold float64
}

// DefaultOptions returns the column names used by the Jigsaw toxicity data.
func DefaultOptions() Options {
	return Options{
		LabelField: "toxicity",
		ScoreField: "score",
		Threshold:  bias.DefaultLabelThreshold,
	}
}

// ReadCSV reads a header row followed by one record per row. Empty
// subgroup cells mean "not a member".
func ReadCSV(r io.Reader, opts Options) (model.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.Dataset{}, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return model.Dataset{}, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	labelIdx := slices.Index(header, opts.LabelField)
	if labelIdx < 0 {
		return model.Dataset{}, fmt.Errorf("%w: label %q", ErrMissingColumn, opts.LabelField)
	}
	scoreIdx := slices.Index(header, opts.ScoreField)
	if scoreIdx < 0 {
		return model.Dataset{}, fmt.Errorf("%w: score %q", ErrMissingColumn, opts.ScoreField)
	}

	subgroups := opts.SubgroupFields
	if len(subgroups) == 0 {
		for _, col := range header {
			if col == opts.LabelField || col == opts.ScoreField || col == "id" || slices.Contains(opts.IgnoreFields, col) {
				continue
			}
			subgroups = append(subgroups, col)
		}
	}
	subgroupIdx := make([]int, len(subgroups))
	for i, id := range subgroups {
		if subgroupIdx[i] = slices.Index(header, id); subgroupIdx[i] < 0 {
			return model.Dataset{}, fmt.Errorf("%w: subgroup %q", ErrMissingColumn, id)
		}
	}

	var records []model.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Dataset{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		line, _ := cr.FieldPos(0)

		rec, err := csvRecord(row, labelIdx, scoreIdx, subgroups, subgroupIdx, opts.Threshold)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return model.NewDataset(opts.LabelField, subgroups, records), nil
}

func csvRecord(row []string, labelIdx, scoreIdx int, subgroups []string, subgroupIdx []int, threshold float64) (model.Record, error) {
	label, err := parseCell(row[labelIdx])
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: label %q", ErrInvalidRecord, row[labelIdx])
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(row[scoreIdx]), 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return model.Record{}, fmt.Errorf("%w: score %q", ErrInvalidRecord, row[scoreIdx])
	}

	flags := make(map[string]bool)
	for i, id := range subgroups {
		cell := strings.TrimSpace(row[subgroupIdx[i]])
		if cell == "" {
			continue
		}
		v, err := parseCell(cell)
		if err != nil {
			return model.Record{}, fmt.Errorf("%w: subgroup %q value %q", ErrInvalidRecord, id, cell)
		}
		if bias.Binarize(v, threshold) {
			flags[id] = true
		}
	}

	return model.Record{
		Label:     bias.Binarize(label, threshold),
		Score:     score,
		Subgroups: flags,
	}, nil
}
