package bias_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/biasaudit/internal/domain/bias"
	"github.com/okian/biasaudit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(label bool, score float64, subgroups ...string) model.Record {
	flags := make(map[string]bool, len(subgroups))
	for _, s := range subgroups {
		flags[s] = true
	}
	return model.Record{Label: label, Score: score, Subgroups: flags}
}

func TestEngine_FourRecordScenario(t *testing.T) {
	Convey("Given two subgroup and two background records", t, func() {
		ds := model.NewDataset("toxicity", []string{"A"}, []model.Record{
			rec(true, 0.9, "A"),
			rec(false, 0.1, "A"),
			rec(true, 0.8),
			rec(false, 0.2),
		})
		engine := bias.NewEngine()

		Convey("Then each metric should show perfect separation", func() {
			sub, err := engine.SubgroupAUC(ds, "A")
			So(err, ShouldBeNil)
			So(sub.Float(), ShouldEqual, 1.0)

			bpsn, err := engine.BPSNAUC(ds, "A")
			So(err, ShouldBeNil)
			So(bpsn.Float(), ShouldEqual, 1.0)

			bnsp, err := engine.BNSPAUC(ds, "A")
			So(err, ShouldBeNil)
			So(bnsp.Float(), ShouldEqual, 1.0)
		})

		Convey("When computing the full table", func() {
			results, err := engine.ComputeBiasMetrics(context.Background(), ds, []string{"A"})

			Convey("Then the single result should carry size and AUCs", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 1)
				So(results[0].Subgroup, ShouldEqual, "A")
				So(results[0].SubgroupSize, ShouldEqual, 2)
				So(results[0].SubgroupAUC.Float(), ShouldEqual, 1.0)
				So(results[0].BPSNAUC.Float(), ShouldEqual, 1.0)
				So(results[0].BNSPAUC.Float(), ShouldEqual, 1.0)
			})
		})
	})
}

func TestEngine_CrossMetrics(t *testing.T) {
	Convey("Given a subgroup whose non-toxic comments score high", t, func() {
		ds := model.NewDataset("toxicity", []string{"gay"}, []model.Record{
			rec(false, 0.7, "gay"),
			rec(true, 0.9, "gay"),
			rec(true, 0.6),
			rec(false, 0.1),
		})
		engine := bias.NewEngine()

		Convey("Then BPSN should expose the false positive bias", func() {
			// subgroup negative 0.7 vs background positive 0.6
			auc, err := engine.BPSNAUC(ds, "gay")
			So(err, ShouldBeNil)
			So(auc.Float(), ShouldEqual, 0.0)
		})

		Convey("Then BNSP should stay perfect", func() {
			// subgroup positive 0.9 vs background negative 0.1
			auc, err := engine.BNSPAUC(ds, "gay")
			So(err, ShouldBeNil)
			So(auc.Float(), ShouldEqual, 1.0)
		})
	})
}

func TestEngine_Undefined(t *testing.T) {
	Convey("Given a subgroup of five records all labeled toxic", t, func() {
		records := []model.Record{
			rec(false, 0.3),
			rec(true, 0.8),
		}
		for i := 0; i < 5; i++ {
			records = append(records, rec(true, 0.5+float64(i)/10, "S"))
		}
		ds := model.NewDataset("toxicity", []string{"S"}, records)
		engine := bias.NewEngine()

		Convey("Then the subgroup AUC should be undefined", func() {
			auc, err := engine.SubgroupAUC(ds, "S")
			So(err, ShouldBeNil)
			So(auc.IsDefined(), ShouldBeFalse)
		})

		Convey("Then BPSN should be undefined for lack of subgroup negatives", func() {
			auc, err := engine.BPSNAUC(ds, "S")
			So(err, ShouldBeNil)
			So(auc.IsDefined(), ShouldBeFalse)
		})

		Convey("Then BNSP should still be defined", func() {
			auc, err := engine.BNSPAUC(ds, "S")
			So(err, ShouldBeNil)
			So(auc.IsDefined(), ShouldBeTrue)
		})
	})
}

func TestEngine_ComputeBiasMetrics(t *testing.T) {
	Convey("Given subgroups with perfect, inverted and undefined AUCs", t, func() {
		ds := model.NewDataset("toxicity", []string{"a", "b", "c", "d"}, []model.Record{
			rec(true, 0.9, "a"),
			rec(false, 0.1, "a"),
			rec(true, 0.2, "b"),
			rec(false, 0.8, "b"),
			rec(true, 0.7, "c"),
			rec(true, 0.6, "c"),
		})
		engine := bias.NewEngine(bias.WithParallelism(2))
		ctx := context.Background()

		Convey("When computing metrics", func() {
			results, err := engine.ComputeBiasMetrics(ctx, ds, []string{"c", "a", "d", "b"})

			Convey("Then every subgroup should be reported once", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 4)
			})

			Convey("Then results should ascend by subgroup AUC with undefined last", func() {
				So(results[0].Subgroup, ShouldEqual, "b")
				So(results[1].Subgroup, ShouldEqual, "a")
				So(results[2].Subgroup, ShouldEqual, "c")
				So(results[3].Subgroup, ShouldEqual, "d")
				So(results[2].SubgroupAUC.IsDefined(), ShouldBeFalse)
				So(results[3].SubgroupAUC.IsDefined(), ShouldBeFalse)
			})

			Convey("Then an empty subgroup should report size zero", func() {
				So(results[3].SubgroupSize, ShouldEqual, 0)
			})
		})

		Convey("When the request repeats a subgroup", func() {
			results, err := engine.ComputeBiasMetrics(ctx, ds, []string{"a", "a", "b"})

			Convey("Then duplicates should be collapsed", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
			})
		})

		Convey("When the request names an undeclared subgroup", func() {
			_, err := engine.ComputeBiasMetrics(ctx, ds, []string{"a", "zzz"})

			Convey("Then it should fail as a contract violation", func() {
				So(errors.Is(err, bias.ErrUnknownSubgroup), ShouldBeTrue)
			})
		})

		Convey("When the request has an empty subgroup id", func() {
			_, err := engine.ComputeBiasMetrics(ctx, ds, []string{" "})

			Convey("Then it should fail", func() {
				So(errors.Is(err, bias.ErrEmptySubgroupID), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := engine.ComputeBiasMetrics(cctx, ds, []string{"a", "b"})

			Convey("Then it should return the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When no subgroups are requested", func() {
			results, err := engine.ComputeBiasMetrics(ctx, ds, nil)

			Convey("Then the table should be empty", func() {
				So(err, ShouldBeNil)
				So(results, ShouldBeEmpty)
			})
		})
	})
}

func TestEngine_ParallelismIsTransparent(t *testing.T) {
	Convey("Given a larger random dataset", t, func() {
		rng := rand.New(rand.NewSource(11))
		subgroups := make([]string, 12)
		for i := range subgroups {
			subgroups[i] = fmt.Sprintf("group-%02d", i)
		}
		records := make([]model.Record, 2000)
		counts := make(map[string]int, len(subgroups))
		for i := range records {
			var flags []string
			for _, s := range subgroups {
				if rng.Intn(4) == 0 {
					flags = append(flags, s)
					counts[s]++
				}
			}
			label := rng.Intn(3) == 0
			score := rng.Float64()
			if label {
				score = 0.3 + 0.7*score
			}
			records[i] = rec(label, score, flags...)
		}
		ds := model.NewDataset("toxicity", subgroups, records)

		Convey("Then sequential and parallel runs should agree", func() {
			seq, err := bias.NewEngine(bias.WithParallelism(1)).ComputeBiasMetrics(context.Background(), ds, subgroups)
			So(err, ShouldBeNil)
			par, err := bias.NewEngine(bias.WithParallelism(8)).ComputeBiasMetrics(context.Background(), ds, subgroups)
			So(err, ShouldBeNil)
			So(par, ShouldResemble, seq)
		})

		Convey("Then sizes should match the flag counts", func() {
			results, err := bias.NewEngine().ComputeBiasMetrics(context.Background(), ds, subgroups)
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, len(subgroups))
			for _, r := range results {
				So(counts[r.Subgroup], ShouldBeGreaterThan, 0)
				So(r.SubgroupSize, ShouldEqual, counts[r.Subgroup])
			}
			for i := 1; i < len(results); i++ {
				So(results[i-1].SubgroupAUC.Compare(results[i].SubgroupAUC), ShouldBeLessThanOrEqualTo, 0)
			}
		})
	})
}

func TestEngine_InvalidScore(t *testing.T) {
	Convey("Given a dataset with an infinite score", t, func() {
		ds := model.NewDataset("toxicity", []string{"a"}, []model.Record{
			rec(true, 0.9, "a"),
			{Label: false, Score: math.Inf(1)},
		})

		Convey("Then computing metrics should fail fast", func() {
			_, err := bias.NewEngine().ComputeBiasMetrics(context.Background(), ds, []string{"a"})
			So(errors.Is(err, bias.ErrInvalidScore), ShouldBeTrue)
		})
	})
}
