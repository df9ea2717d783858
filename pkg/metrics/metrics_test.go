package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager is created on it", func() {
			m := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every series is registered under the service namespace", func() {
				m.assessments.Inc()
				m.queueSize.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "trials_attempts_assessments_total")
				So(joined, ShouldContainSubstring, "trials_attempts_result_queue_size")
			})

			Convey("Then latency histograms use the default buckets", func() {
				m.storeLatency.WithLabelValues("memory", "get").Observe(3)
				families, _ := registry.Gather()
				for _, f := range families {
					if f.GetName() == "trials_attempts_store_latency_milliseconds" {
						So(f.GetMetric()[0].GetHistogram().GetBucket(), ShouldHaveLength, len(prometheus.DefBuckets))
					}
				}
			})
		})

		Convey("When a nil registry is passed", func() {
			m := NewManager(WithPrometheusRegistry(nil), WithPrometheusRegistry(registry))

			Convey("Then it is ignored", func() {
				So(m.registry, ShouldEqual, registry)
			})
		})

		Convey("When the same registry is used twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})

		Convey("When metrics are disabled", func() {
			m := NewManager(WithMetricsEnabled(false), WithPrometheusRegistry(registry))

			Convey("Then nothing lands on the supplied registry", func() {
				m.assessments.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Counters move by the recorded amount", func() {
			before := testutil.ToFloat64(globalManager.attemptsSubmitted.WithLabelValues("sit-ups"))
			RecordAttemptSubmitted("sit-ups")
			RecordAttemptSubmitted("sit-ups")
			So(testutil.ToFloat64(globalManager.attemptsSubmitted.WithLabelValues("sit-ups")), ShouldEqual, before+2)
		})

		Convey("Unresolved athletes ignore non-positive counts", func() {
			before := testutil.ToFloat64(globalManager.unresolvedAthletes.WithLabelValues("pending"))
			RecordUnresolvedAthletes("pending", 0)
			RecordUnresolvedAthletes("pending", -1)
			RecordUnresolvedAthletes("pending", 3)
			So(testutil.ToFloat64(globalManager.unresolvedAthletes.WithLabelValues("pending")), ShouldEqual, before+3)
		})

		Convey("Gauges hold the last value", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.7)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
			So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.7)
		})

		Convey("Labelled recorders accept any label values", func() {
			So(func() {
				RecordNotification("kafka", "sent")
				RecordResultApplied("done")
				RecordIntakeMessage("enqueued")
				RecordValidationRejection("score")
				RecordStoreLatency("memory", "create", 0.2)
				RecordWorkerError("apply")
				RecordHTTPRequest("/attempts", "POST", "201")
				RecordHTTPRequestDuration("/attempts", "POST", "201", 12)
				RecordErrorByComponent("queue", "full")
				RecordErrorByType("not_found", "warning")
				RecordErrorByEndpoint("/attempts/{id}", "GET", "not_found")
			}, ShouldNotPanic)
		})

		Convey("Unlabelled recorders do not panic", func() {
			So(func() {
				RecordIngestLatency(30)
				RecordUploadFailure()
				RecordCommitFailure()
				RecordCommitRetry()
				RecordResultParseError()
				RecordResultDuplicate()
				RecordAssessment()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.01)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("The exported registry is the one the recorders write to", func() {
			RecordAssessment()
			n, err := testutil.GatherAndCount(GetRegistry(), "trials_attempts_assessments_total")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}

func TestRecordersConcurrency(t *testing.T) {
	Convey("Concurrent recording is safe", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueued)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordQueueEnqueue()
					RecordHTTPRequest("/stats", "GET", "200")
				}
			}()
		}
		wg.Wait()
		So(testutil.ToFloat64(globalManager.queueEnqueued), ShouldEqual, before+1000)
	})
}
