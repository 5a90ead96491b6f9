package bias

import (
	"math"

	"github.com/okian/biasaudit/internal/domain/model"
)

// Summary defaults used with these metrics.
const (
	DefaultSummaryPower    = -5.0
	DefaultOverallWeight   = 0.25
	DefaultLabelThreshold  = 0.5
	DefaultMinSubgroupSize = 100
)

// Binarize turns a soft rating (e.g. the fraction of raters who marked a
// comment toxic) into a label. The threshold is the caller's policy.
func Binarize(value, threshold float64) bool {
	return value >= threshold
}

// SelectSubgroups keeps the candidates with at least minSize flagged
// records, in candidate order, and returns the rest as skipped. Empty
// candidates mean every declared subgroup of ds.
func SelectSubgroups(ds model.Dataset, candidates []string, minSize int) (selected, skipped []string) {
	if len(candidates) == 0 {
		candidates = ds.Subgroups
	}
	for _, id := range candidates {
		if ds.SubgroupSize(id) >= minSize {
			selected = append(selected, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	return selected, skipped
}

// OverallAUC is the AUC over every record of ds.
func OverallAUC(ds model.Dataset) (model.AUC, error) {
	return recordsAUC(ds.Records)
}

// PowerMean returns the generalized mean (mean(x^p))^(1/p) of the defined
// values. p == 0 is the geometric mean. It is undefined when no value is.
func PowerMean(values []model.AUC, p float64) model.AUC {
	var sum float64
	n := 0
	for _, v := range values {
		x, ok := v.Value()
		if !ok {
			continue
		}
		if p == 0 {
			sum += math.Log(x)
		} else {
			sum += math.Pow(x, p)
		}
		n++
	}
	if n == 0 {
		return model.UndefinedAUC()
	}
	mean := sum / float64(n)
	if p == 0 {
		return model.DefinedAUC(math.Exp(mean))
	}
	return model.DefinedAUC(math.Pow(mean, 1/p))
}

// Summarize rolls a bias table up into one number:
// weight*overall + (1-weight)*mean(power means of the three AUC columns).
// Undefined entries are skipped at every step.
func Summarize(overall model.AUC, results []model.SubgroupMetricResult, power, weight float64) model.Summary {
	sub := make([]model.AUC, len(results))
	bpsn := make([]model.AUC, len(results))
	bnsp := make([]model.AUC, len(results))
	for i, r := range results {
		sub[i], bpsn[i], bnsp[i] = r.SubgroupAUC, r.BPSNAUC, r.BNSPAUC
	}

	s := model.Summary{
		Power:         power,
		OverallWeight: weight,
		SubgroupMean:  PowerMean(sub, power),
		BPSNMean:      PowerMean(bpsn, power),
		BNSPMean:      PowerMean(bnsp, power),
	}

	var biasSum float64
	n := 0
	for _, m := range []model.AUC{s.SubgroupMean, s.BPSNMean, s.BNSPMean} {
		if v, ok := m.Value(); ok {
			biasSum += v
			n++
		}
	}

	o, overallOK := overall.Value()
	switch {
	case n == 0 && !overallOK:
		s.Final = model.UndefinedAUC()
	case n == 0:
		s.Final = model.DefinedAUC(o)
	case !overallOK:
		s.Final = model.DefinedAUC(biasSum / float64(n))
	default:
		s.Final = model.DefinedAUC(weight*o + (1-weight)*biasSum/float64(n))
	}
	return s
}
