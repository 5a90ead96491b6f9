package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry and options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors should live on that registry", func() {
				So(manager, ShouldNotBeNil)
				manager.evaluationsSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_evaluations_submitted_total")
				for _, n := range names {
					So(strings.HasPrefix(n, "test_unit_"), ShouldBeTrue)
				}
			})
		})

		Convey("When creating two managers on separate registries", func() {
			Convey("Then registration should not collide", func() {
				So(func() {
					NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
					NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording evaluation metrics", func() {
			before := testutil.ToFloat64(globalManager.evaluationsCompleted)
			records := testutil.ToFloat64(globalManager.recordsEvaluated)
			RecordEvaluationSubmitted()
			RecordEvaluationCompleted(1000, 5, 2, 12.5)

			Convey("Then the counters should advance", func() {
				So(testutil.ToFloat64(globalManager.evaluationsCompleted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.recordsEvaluated), ShouldEqual, records+1000)
			})
		})

		Convey("When recording undefined AUCs by metric", func() {
			before := testutil.ToFloat64(globalManager.undefinedAUC.WithLabelValues("bpsn_auc"))
			RecordUndefinedAUC("bpsn_auc")
			RecordUndefinedAUC("bpsn_auc")

			Convey("Then the labeled series should count them", func() {
				So(testutil.ToFloat64(globalManager.undefinedAUC.WithLabelValues("bpsn_auc")), ShouldEqual, before+2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.7)
			UpdateWorkerCount(4)
			UpdateReportsStored(3)

			Convey("Then they should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.reportsStored), ShouldEqual, 3)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordEvaluationDuplicate()
					RecordEvaluationFailed()
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordStoreLatency("save", 1.5)
					RecordHTTPRequest("/evaluations", "POST", "202")
					RecordHTTPRequestDuration("/evaluations", "POST", "202", 3)
					RecordErrorByComponent("worker", "evaluate")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
				}, ShouldNotPanic)
			})
		})

		Convey("Then the registry should expose the service metrics", func() {
			RecordEvaluationSubmitted()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
