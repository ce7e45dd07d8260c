package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithRegistry(prometheus.NewRegistry()))

			Convey("Then defaults are applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "creditconsole")
				So(manager.subsystem, ShouldEqual, "console")
				So(manager.enabled, ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			manager := NewManager(
				WithNamespace("ns"),
				WithSubsystem("sub"),
				WithMetricPrefix("pre"),
				WithLatencyBuckets([]float64{1, 10}),
				WithRefreshInterval(time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(prometheus.NewRegistry()),
			)

			Convey("Then the options are honoured", func() {
				So(manager.namespace, ShouldEqual, "ns")
				So(manager.subsystem, ShouldEqual, "sub")
				So(manager.name("x"), ShouldEqual, "pre_x")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10})
				So(manager.RefreshInterval(), ShouldEqual, time.Second)
				So(manager.customLabels, ShouldResemble, map[string]string{"env": "test"})
			})
		})

		Convey("When buckets are unsorted with duplicates", func() {
			manager := NewManager(
				WithLatencyBuckets([]float64{50, 5, 50, 1}),
				WithRegistry(prometheus.NewRegistry()),
			)

			Convey("Then they are normalized", func() {
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 5, 50})
			})
		})

		Convey("When empty values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithLatencyBuckets(nil),
				WithRefreshInterval(0),
				WithRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "creditconsole")
				So(manager.histogramBuckets, ShouldResemble, defaultLatencyBuckets)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		manager := NewManager(WithRegistry(prometheus.NewRegistry()))

		Convey("When provider requests are recorded", func() {
			manager.RecordProviderRequest("fetch_dashboard", "ok", 12)
			manager.RecordProviderRequest("fetch_dashboard", "ok", 30)
			manager.RecordProviderRequest("submit_limit", "validation_rejected", 5)

			Convey("Then counters are split by label", func() {
				So(testutil.ToFloat64(manager.providerRequests.WithLabelValues("fetch_dashboard", "ok")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.providerRequests.WithLabelValues("submit_limit", "validation_rejected")), ShouldEqual, 1)
			})
		})

		Convey("When workflow metrics are recorded", func() {
			manager.RecordLimitDecision("approve", "ok")
			manager.RecordRejectedCommand("submit")
			manager.RecordStaleResponse("dashboard")
			manager.RecordDashboardRefresh("stale")
			manager.SetWorkflowState("editing", "closed", "editing", "submitting")

			Convey("Then each collector reflects it", func() {
				So(testutil.ToFloat64(manager.limitDecisions.WithLabelValues("approve", "ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.rejectedCommands.WithLabelValues("submit")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.staleResponses.WithLabelValues("dashboard")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.dashboardRefreshes.WithLabelValues("stale")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.workflowState.WithLabelValues("editing")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.workflowState.WithLabelValues("closed")), ShouldEqual, 0)
			})
		})

		Convey("When gauges are updated", func() {
			manager.UpdateRankingRows(5)
			manager.UpdateEntities(12)
			manager.UpdateSystemGoroutineCount(7)
			manager.UpdateSystemMemoryUsage(2048)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(manager.rankingRows), ShouldEqual, 5)
				So(testutil.ToFloat64(manager.entitiesListed), ShouldEqual, 12)
				So(testutil.ToFloat64(manager.systemGoroutineCount), ShouldEqual, 7)
				So(testutil.ToFloat64(manager.systemMemoryUsage), ShouldEqual, 2048)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		manager := NewManager(WithEnabled(false), WithRegistry(prometheus.NewRegistry()))

		Convey("When recording", func() {
			manager.RecordHTTPRequest("/api/v1/view", "GET", "200", 3)

			Convey("Then nothing is counted", func() {
				So(testutil.ToFloat64(manager.httpRequests.WithLabelValues("/api/v1/view", "GET", "200")), ShouldEqual, 0)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When helpers are called", func() {
			RecordHTTPRequest("/healthz", "GET", "200", 1)
			RecordProviderRequest("list_entities", "ok", 2)

			Convey("Then the shared registry exposes the families", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["creditconsole_console_http_requests_total"], ShouldBeTrue)
				So(names["creditconsole_console_provider_requests_total"], ShouldBeTrue)
			})
		})
	})
}
