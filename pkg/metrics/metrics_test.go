package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with service defaults", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "scores")
				So(manager.subsystem, ShouldEqual, "stream")
				So(manager.Enabled(), ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)
			})

			Convey("And metric names should carry the prefix", func() {
				manager.eventsPublished.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_namespace_test_subsystem_pfx_events_published_total")
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "scores")
				So(manager.subsystem, ShouldEqual, "stream")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording publish metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsPublished)
			RecordEventPublished()
			RecordEventPublished()
			RecordPublishLatency(12)
			RecordPublishError("validation")
			RecordIdempotentReplay()
			RecordConfirmationLatency(3)
			UpdateIdempotencyEntries(7)

			Convey("Then counters and gauges should move", func() {
				So(testutil.ToFloat64(globalManager.eventsPublished)-before, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.publishErrors.WithLabelValues("validation")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.idempotencyEntries), ShouldEqual, 7)
			})
		})

		Convey("When recording read metrics", func() {
			skippedBefore := testutil.ToFloat64(globalManager.decodeSkipped)
			RecordFetch(25, 3, 1)
			RecordDecodeSkipped(2)
			RecordDecodeSkipped(0)
			RecordFetchError()
			UpdateAnalysisPlayers(2)

			Convey("Then the read gauges should reflect the last fetch", func() {
				So(testutil.ToFloat64(globalManager.fetchRecords), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.decodeSkipped)-skippedBefore, ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.analysisPlayers), ShouldEqual, 2)
			})
		})

		Convey("When recording generation and schema metrics", func() {
			So(func() {
				RecordGenerationLatency(300)
				RecordGenerationError()
				RecordSummaryDegraded()
				RecordSummaryTruncated()
				RecordSchemaRegistration(40)
			}, ShouldNotPanic)

			UpdateSchemaState(SchemaStateConflict)
			So(testutil.ToFloat64(globalManager.schemaState), ShouldEqual, -1)
			UpdateSchemaState(SchemaStateReady)
			So(testutil.ToFloat64(globalManager.schemaState), ShouldEqual, 1)
		})

		Convey("When recording HTTP, error and system metrics", func() {
			So(func() {
				RecordHTTPRequest("publish", "POST", "200")
				RecordHTTPRequestDuration("publish", "POST", "200", 10)
				RecordErrorByComponent("publisher", "backend")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("data", "GET", "client_error")
				RecordErrorLatency("http", "server_error", 5)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry should be gatherable", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.eventsPublished)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordEventPublished()
				RecordHTTPRequest("data", "GET", "200")
			}()
		}
		wg.Wait()

		So(testutil.ToFloat64(globalManager.eventsPublished)-before, ShouldEqual, 50)
	})
}

func TestMetricsConfigure(t *testing.T) {
	Convey("Given the global manager switched off", t, func() {
		Configure(WithMetricsEnabled(false))
		defer Configure(WithMetricsEnabled(true))
		So(Enabled(), ShouldBeFalse)

		before := testutil.ToFloat64(globalManager.eventsPublished)
		state := testutil.ToFloat64(globalManager.schemaState)
		RecordEventPublished()
		RecordDecodeSkipped(3)
		UpdateSchemaState(SchemaStateConflict)

		Convey("Then the helpers leave the collectors untouched", func() {
			So(testutil.ToFloat64(globalManager.eventsPublished), ShouldEqual, before)
			So(testutil.ToFloat64(globalManager.schemaState), ShouldEqual, state)
		})
	})

	Convey("Given a new refresh interval", t, func() {
		previous := RefreshInterval()
		Configure(WithRefreshInterval(2 * time.Second))
		defer Configure(WithRefreshInterval(previous))

		So(RefreshInterval(), ShouldEqual, 2*time.Second)
		So(Enabled(), ShouldBeTrue)
	})
}
