// Package model contains domain models passed between layers.
package model

import "sort"

// Record is one labeled, scored example.
type Record struct {
	Label     bool            // ground truth; true is the toxic class
	Score     float64         // model probability
	Subgroups map[string]bool // identity subgroup membership flags
}

// In reports whether the record is flagged as belonging to subgroup.
func (r Record) In(subgroup string) bool {
	return r.Subgroups[subgroup]
}

// Dataset is an ordered, read-only collection of records plus the name of
// the column its labels were derived from.
type Dataset struct {
	LabelField string
	Subgroups  []string // declared subgroup columns
	Records    []Record
}

// NewDataset builds a Dataset. When subgroups is empty the declared set is
// the sorted union of subgroup keys seen on the records.
func NewDataset(labelField string, subgroups []string, records []Record) Dataset {
	declared := make([]string, 0, len(subgroups))
	if len(subgroups) > 0 {
		declared = append(declared, subgroups...)
	} else {
		declared = subgroupKeys(records)
	}
	return Dataset{
		LabelField: labelField,
		Subgroups:  declared,
		Records:    records,
	}
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// HasSubgroup reports whether id is a declared subgroup of the dataset.
func (d Dataset) HasSubgroup(id string) bool {
	declared := d.Subgroups
	if len(declared) == 0 {
		declared = subgroupKeys(d.Records)
	}
	for _, s := range declared {
		if s == id {
			return true
		}
	}
	return false
}

// Filter returns the records matching keep, preserving order.
func (d Dataset) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, r := range d.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// SubgroupSize counts records flagged as members of subgroup.
func (d Dataset) SubgroupSize(subgroup string) int {
	n := 0
	for _, r := range d.Records {
		if r.In(subgroup) {
			n++
		}
	}
	return n
}

// Split returns parallel label and score slices for records.
func Split(records []Record) ([]bool, []float64) {
	labels := make([]bool, len(records))
	scores := make([]float64, len(records))
	for i, r := range records {
		labels[i] = r.Label
		scores[i] = r.Score
	}
	return labels, scores
}

func subgroupKeys(records []Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Subgroups {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
