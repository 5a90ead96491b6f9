package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/okian/biasaudit/internal/domain/model"
)

const maxLineBytes = 4 << 20

// RecordPayload is one record in JSON form.
type RecordPayload struct {
	Label     *Value      `json:"label"`
	Score     *float64    `json:"score"`
	Subgroups Memberships `json:"subgroups,omitempty"`
}

// Payload is a dataset in JSON form.
type Payload struct {
	LabelField string `json:"label_field,omitempty"`
	// SubgroupFields declares the subgroup ids of the dataset. Empty means
	// the union of ids seen on the records.
	SubgroupFields []string        `json:"subgroup_fields,omitempty"`
	Threshold      *float64        `json:"threshold,omitempty"`
	Records        []RecordPayload `json:"records"`
}

// FromRequest builds a Dataset from an API payload. The payload threshold
// wins over defaultThreshold.
func FromRequest(p Payload, defaultThreshold float64) (model.Dataset, error) {
	threshold := defaultThreshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	labelField := p.LabelField
	if labelField == "" {
		labelField = "label"
	}

	records := make([]model.Record, len(p.Records))
	seen := make(map[string]struct{})
	for i, rp := range p.Records {
		rec, err := rp.record(threshold)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("record %d: %w", i, err)
		}
		records[i] = rec
		rp.Subgroups.collect(seen)
	}
	return model.NewDataset(labelField, declared(p.SubgroupFields, seen), records), nil
}

// ReadJSONL reads one RecordPayload per line. Blank lines are skipped.
// opts.LabelField names the dataset; opts.SubgroupFields, when set,
// declares the subgroups.
func ReadJSONL(r io.Reader, opts Options) (model.Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []model.Record
	seen := make(map[string]struct{})
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rp RecordPayload
		if err := json.Unmarshal(b, &rp); err != nil {
			return model.Dataset{}, fmt.Errorf("line %d: %w: %w", line, ErrInvalidRecord, err)
		}
		rec, err := rp.record(opts.Threshold)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
		rp.Subgroups.collect(seen)
	}
	if err := sc.Err(); err != nil {
		return model.Dataset{}, fmt.Errorf("line %d: %w", line+1, err)
	}

	labelField := opts.LabelField
	if labelField == "" {
		labelField = "label"
	}
	return model.NewDataset(labelField, declared(opts.SubgroupFields, seen), records), nil
}

// declared returns explicit when set, otherwise the sorted ids in seen.
// seen includes ids whose every membership was false so they still get
// a result.
func declared(explicit []string, seen map[string]struct{}) []string {
	if len(explicit) > 0 {
		return explicit
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (rp RecordPayload) record(threshold float64) (model.Record, error) {
	if rp.Label == nil {
		return model.Record{}, fmt.Errorf("%w: missing label", ErrInvalidRecord)
	}
	if rp.Score == nil {
		return model.Record{}, fmt.Errorf("%w: missing score", ErrInvalidRecord)
	}
	if math.IsNaN(*rp.Score) || math.IsInf(*rp.Score, 0) {
		return model.Record{}, fmt.Errorf("%w: score is not finite", ErrInvalidRecord)
	}
	return model.Record{
		Label:     rp.Label.Bool(threshold),
		Score:     *rp.Score,
		Subgroups: rp.Subgroups.flags(threshold),
	}, nil
}

// ToPayload converts ds back into its API form. Labels and memberships
// become 0/1 and the threshold is fixed at 0.5 so FromRequest restores ds.
func ToPayload(ds model.Dataset) Payload { //nolint:gocritic // hugeParam
	threshold := 0.5
	records := make([]RecordPayload, len(ds.Records))
	for i, r := range ds.Records {
		label := Value(0)
		if r.Label {
			label = 1
		}
		score := r.Score
		members := make(Memberships, len(r.Subgroups))
		for id, in := range r.Subgroups {
			if in {
				members[id] = 1
			}
		}
		records[i] = RecordPayload{Label: &label, Score: &score, Subgroups: members}
	}
	return Payload{
		LabelField:     ds.LabelField,
		SubgroupFields: append([]string(nil), ds.Subgroups...),
		Threshold:      &threshold,
		Records:        records,
	}
}
