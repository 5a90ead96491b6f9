package bias_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/biasaudit/internal/domain/bias"
	. "github.com/smartystreets/goconvey/convey"
)

func TestComputeAUC(t *testing.T) {
	Convey("Given label and score sequences", t, func() {
		Convey("When positives all score above negatives", func() {
			auc, err := bias.ComputeAUC([]bool{true, true, false, false}, []float64{0.9, 0.8, 0.1, 0.2})

			Convey("Then the AUC should be 1", func() {
				So(err, ShouldBeNil)
				v, ok := auc.Value()
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 1.0)
			})
		})

		Convey("When positives all score below negatives", func() {
			auc, err := bias.ComputeAUC([]bool{true, true, false, false}, []float64{0.1, 0.2, 0.9, 0.8})

			Convey("Then the AUC should be 0", func() {
				So(err, ShouldBeNil)
				So(auc.IsDefined(), ShouldBeTrue)
				So(auc.Float(), ShouldEqual, 0.0)
			})
		})

		Convey("When every score is identical", func() {
			auc, err := bias.ComputeAUC([]bool{true, false, true, false, false}, []float64{0.4, 0.4, 0.4, 0.4, 0.4})

			Convey("Then the AUC should be 0.5", func() {
				So(err, ShouldBeNil)
				So(auc.Float(), ShouldEqual, 0.5)
			})
		})

		Convey("When the ordering is partially correct", func() {
			auc, err := bias.ComputeAUC([]bool{true, false, true, false}, []float64{0.8, 0.6, 0.4, 0.2})

			Convey("Then the AUC should be the fraction of correctly ordered pairs", func() {
				So(err, ShouldBeNil)
				So(auc.Float(), ShouldAlmostEqual, 0.75, 1e-12)
			})
		})

		Convey("When a positive ties a negative", func() {
			auc, err := bias.ComputeAUC([]bool{true, true, false}, []float64{0.5, 0.9, 0.5})

			Convey("Then the tie should count one half", func() {
				So(err, ShouldBeNil)
				So(auc.Float(), ShouldAlmostEqual, 0.75, 1e-12)
			})
		})

		Convey("When the labels have a single class or are empty", func() {
			allTrue, err1 := bias.ComputeAUC([]bool{true, true, true}, []float64{0.1, 0.5, 0.9})
			allFalse, err2 := bias.ComputeAUC([]bool{false, false}, []float64{0.1, 0.9})
			empty, err3 := bias.ComputeAUC(nil, nil)

			Convey("Then the AUC should be undefined without an error", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(allTrue.IsDefined(), ShouldBeFalse)
				So(allFalse.IsDefined(), ShouldBeFalse)
				So(empty.IsDefined(), ShouldBeFalse)
				So(math.IsNaN(empty.Float()), ShouldBeTrue)
			})
		})

		Convey("When the sequences differ in length", func() {
			_, err := bias.ComputeAUC([]bool{true, false}, []float64{0.5})

			Convey("Then it should fail with a length mismatch", func() {
				So(errors.Is(err, bias.ErrLengthMismatch), ShouldBeTrue)
			})
		})

		Convey("When a score is not finite", func() {
			_, errNaN := bias.ComputeAUC([]bool{true, false}, []float64{math.NaN(), 0.5})
			_, errInf := bias.ComputeAUC([]bool{true, false}, []float64{0.5, math.Inf(-1)})

			Convey("Then it should fail with an invalid score", func() {
				So(errors.Is(errNaN, bias.ErrInvalidScore), ShouldBeTrue)
				So(errors.Is(errInf, bias.ErrInvalidScore), ShouldBeTrue)
			})
		})
	})
}

func TestComputeAUC_Properties(t *testing.T) {
	Convey("Given a random labeled sample", t, func() {
		rng := rand.New(rand.NewSource(7))
		n := 200
		labels := make([]bool, n)
		scores := make([]float64, n)
		for i := range labels {
			labels[i] = rng.Intn(3) == 0
			// coarse scores force ties
			scores[i] = math.Round(rng.Float64()*20) / 20
		}
		labels[0], labels[1] = true, false

		base, err := bias.ComputeAUC(labels, scores)
		So(err, ShouldBeNil)

		Convey("Then the AUC should lie in [0, 1]", func() {
			So(base.Float(), ShouldBeBetweenOrEqual, 0.0, 1.0)
		})

		Convey("Then it should match a brute-force pair count", func() {
			var wins, pairs float64
			for i := range labels {
				if !labels[i] {
					continue
				}
				for j := range labels {
					if labels[j] {
						continue
					}
					pairs++
					switch {
					case scores[i] > scores[j]:
						wins++
					case scores[i] == scores[j]:
						wins += 0.5
					}
				}
			}
			So(base.Float(), ShouldAlmostEqual, wins/pairs, 1e-12)
		})

		Convey("When the pairs are permuted", func() {
			pl := append([]bool(nil), labels...)
			ps := append([]float64(nil), scores...)
			rng.Shuffle(n, func(i, j int) {
				pl[i], pl[j] = pl[j], pl[i]
				ps[i], ps[j] = ps[j], ps[i]
			})
			shuffled, err := bias.ComputeAUC(pl, ps)

			Convey("Then the AUC should not change", func() {
				So(err, ShouldBeNil)
				So(shuffled.Float(), ShouldAlmostEqual, base.Float(), 1e-12)
			})
		})
	})
}
