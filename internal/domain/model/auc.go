package model

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// AUC is an area under the ROC curve that may be undefined. A group with
// no positive or no negative examples has no AUC; that is an expected
// outcome, not an error. The zero value is undefined.
type AUC struct {
	value   float64
	defined bool
}

// DefinedAUC wraps a computed AUC value.
func DefinedAUC(v float64) AUC { return AUC{value: v, defined: true} }

// UndefinedAUC returns the undefined marker.
func UndefinedAUC() AUC { return AUC{} }

// Value returns the AUC and whether it is defined.
func (a AUC) Value() (float64, bool) { return a.value, a.defined }

// IsDefined reports whether a carries a value.
func (a AUC) IsDefined() bool { return a.defined }

// Float returns the value, or NaN when undefined.
func (a AUC) Float() float64 {
	if !a.defined {
		return math.NaN()
	}
	return a.value
}

// Compare orders defined values ascending and places undefined last.
func (a AUC) Compare(b AUC) int {
	switch {
	case a.defined && b.defined:
		return cmp.Compare(a.value, b.value)
	case a.defined:
		return -1
	case b.defined:
		return 1
	default:
		return 0
	}
}

func (a AUC) String() string {
	if !a.defined {
		return "undefined"
	}
	return strconv.FormatFloat(a.value, 'f', 4, 64)
}

// MarshalJSON encodes an undefined AUC as null.
func (a AUC) MarshalJSON() ([]byte, error) {
	if !a.defined {
		return []byte("null"), nil
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON decodes null as undefined.
func (a *AUC) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = UndefinedAUC()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode auc: %w", err)
	}
	*a = DefinedAUC(v)
	return nil
}

// MarshalYAML encodes an undefined AUC as null.
func (a AUC) MarshalYAML() (any, error) {
	if !a.defined {
		return nil, nil
	}
	return a.value, nil
}
