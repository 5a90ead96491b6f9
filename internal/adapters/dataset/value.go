package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/biasaudit/internal/domain/bias"
)

// Value is a label or membership given either as a JSON bool or as a
// number such as a rater fraction. true decodes as 1 and false as 0.
type Value float64

// UnmarshalJSON accepts true, false or a number.
func (v *Value) UnmarshalJSON(b []byte) error {
	switch s := string(bytes.TrimSpace(b)); s {
	case "true":
		*v = 1
	case "false", "null":
		*v = 0
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %s is neither bool nor number", ErrInvalidRecord, s)
		}
		*v = Value(f)
	}
	return nil
}

// Bool binarizes v with threshold.
func (v Value) Bool(threshold float64) bool {
	return bias.Binarize(float64(v), threshold)
}

// Memberships maps subgroup ids to membership values. In JSON it is
// either an object of bool/number values or a list of ids that are all
// members.
type Memberships map[string]Value

// UnmarshalJSON accepts an object or a list of strings.
func (m *Memberships) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return fmt.Errorf("%w: subgroups: %w", ErrInvalidRecord, err)
		}
		out := make(Memberships, len(ids))
		for _, id := range ids {
			out[id] = 1
		}
		*m = out
		return nil
	}
	var raw map[string]Value
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: subgroups: %w", ErrInvalidRecord, err)
	}
	*m = raw
	return nil
}

// flags binarizes every membership, dropping non-members.
func (m Memberships) flags(threshold float64) map[string]bool {
	out := make(map[string]bool, len(m))
	for id, v := range m {
		if v.Bool(threshold) {
			out[id] = true
		}
	}
	return out
}

// collect adds every membership id to seen, members or not.
func (m Memberships) collect(seen map[string]struct{}) {
	for id := range m {
		seen[id] = struct{}{}
	}
}

// parseCell reads a CSV cell as a bool literal or a number.
func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if b, err := strconv.ParseBool(cell); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	switch strings.ToLower(cell) {
	case "yes", "y":
		return 1, nil
	case "no", "n":
		return 0, nil
	}
	return strconv.ParseFloat(cell, 64)
}
