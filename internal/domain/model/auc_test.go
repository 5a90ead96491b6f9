package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/biasaudit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestAUC(t *testing.T) {
	Convey("Given defined and undefined AUCs", t, func() {
		low := model.DefinedAUC(0.25)
		high := model.DefinedAUC(0.75)
		undef := model.UndefinedAUC()

		Convey("Then the zero value should be undefined", func() {
			var zero model.AUC
			So(zero.IsDefined(), ShouldBeFalse)
			So(zero, ShouldResemble, undef)
		})

		Convey("Then Compare should order undefined last", func() {
			So(low.Compare(high), ShouldEqual, -1)
			So(high.Compare(low), ShouldEqual, 1)
			So(low.Compare(model.DefinedAUC(0.25)), ShouldEqual, 0)
			So(high.Compare(undef), ShouldEqual, -1)
			So(undef.Compare(low), ShouldEqual, 1)
			So(undef.Compare(model.UndefinedAUC()), ShouldEqual, 0)
		})

		Convey("Then String should render four decimals or undefined", func() {
			So(low.String(), ShouldEqual, "0.2500")
			So(undef.String(), ShouldEqual, "undefined")
		})

		Convey("When encoding to JSON", func() {
			b, err := json.Marshal(model.SubgroupMetricResult{
				Subgroup:     "muslim",
				SubgroupSize: 3,
				SubgroupAUC:  high,
				BPSNAUC:      undef,
				BNSPAUC:      low,
			})

			Convey("Then undefined should be null", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"subgroup":"muslim","subgroup_size":3,"subgroup_auc":0.75,"bpsn_auc":null,"bnsp_auc":0.25}`)
			})

			Convey("Then decoding should restore definedness", func() {
				var back model.SubgroupMetricResult
				So(json.Unmarshal(b, &back), ShouldBeNil)
				So(back.SubgroupAUC, ShouldResemble, high)
				So(back.BPSNAUC.IsDefined(), ShouldBeFalse)
			})
		})

		Convey("When decoding a non-number", func() {
			var a model.AUC
			err := json.Unmarshal([]byte(`"x"`), &a)

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When encoding to YAML", func() {
			b, err := yaml.Marshal(map[string]model.AUC{"a": high, "b": undef})

			Convey("Then undefined should be null", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, "a: 0.75")
				So(string(b), ShouldContainSubstring, "b: null")
			})
		})
	})
}
