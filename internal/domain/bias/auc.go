package bias

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/okian/biasaudit/internal/domain/model"
)

type scoredLabel struct {
	score float64
	label bool
}

// ComputeAUC returns the area under the ROC curve of scores against labels,
// with true as the positive class. It uses the Mann-Whitney rank statistic
// with average ranks for ties, so a tie between a positive and a negative
// counts one half.
//
// The result is undefined unless labels hold at least one positive and one
// negative. Mismatched lengths and non-finite scores are errors.
func ComputeAUC(labels []bool, scores []float64) (model.AUC, error) {
	if len(labels) != len(scores) {
		return model.UndefinedAUC(), fmt.Errorf("%w: %d labels, %d scores", ErrLengthMismatch, len(labels), len(scores))
	}

	pairs := make([]scoredLabel, len(scores))
	positives := 0
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return model.UndefinedAUC(), fmt.Errorf("%w: index %d", ErrInvalidScore, i)
		}
		pairs[i] = scoredLabel{score: s, label: labels[i]}
		if labels[i] {
			positives++
		}
	}
	negatives := len(pairs) - positives
	if positives == 0 || negatives == 0 {
		return model.UndefinedAUC(), nil
	}

	slices.SortFunc(pairs, func(a, b scoredLabel) int { return cmp.Compare(a.score, b.score) })

	var positiveRankSum float64
	for i := 0; i < len(pairs); {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		// ranks i+1..j share their mean
		avgRank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if pairs[k].label {
				positiveRankSum += avgRank
			}
		}
		i = j
	}

	p, n := float64(positives), float64(negatives)
	u := positiveRankSum - p*(p+1)/2
	return model.DefinedAUC(u / (p * n)), nil
}

// recordsAUC computes the AUC of a record slice.
func recordsAUC(records []model.Record) (model.AUC, error) {
	labels, scores := model.Split(records)
	return ComputeAUC(labels, scores)
}
