package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-canary/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "canary"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_results_total",
		Help:      "Count of test results by status",
	}, []string{
		"suite",
		"run_id",
		"status",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of individual tests",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"suite",
		"status",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a test run",
	}, []string{
		"suite",
		"run_id",
		"status",
	})

	runTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_total",
		Help:      "Total number of tests in a run",
	}, []string{
		"suite",
		"run_id",
	})

	runTestsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_passed",
		Help:      "Number of passed tests in a run",
	}, []string{
		"suite",
		"run_id",
	})

	runTestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_failed",
		Help:      "Number of failed tests in a run",
	}, []string{
		"suite",
		"run_id",
	})

	runTestsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_skipped",
		Help:      "Number of skipped tests in a run",
	}, []string{
		"suite",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a test run",
	}, []string{
		"suite",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordTestResult counts a single test outcome and observes its duration.
// Unknown statuses are logged and dropped.
func RecordTestResult(suite string, runID string, status types.Status, duration time.Duration) {
	if !status.IsValid() {
		log.Error("RecordTestResult - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_results_total",
			"suite", suite,
			"run_id", runID,
			"status", status)
	}
	testResultsTotal.WithLabelValues(suite, runID, string(status)).Inc()
	testDuration.WithLabelValues(suite, string(status)).Observe(duration.Seconds())
}

// RunCounts holds the per-status test counts of a run.
type RunCounts struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

func RecordRun(
	suite string,
	runID string,
	status types.Status,
	counts RunCounts,
	duration time.Duration,
) {
	runResults.WithLabelValues(suite, runID, string(status)).Set(1)
	runTestsTotal.WithLabelValues(suite, runID).Add(float64(counts.Total))
	runTestsPassed.WithLabelValues(suite, runID).Add(float64(counts.Passed))
	runTestsFailed.WithLabelValues(suite, runID).Add(float64(counts.Failed))
	runTestsSkipped.WithLabelValues(suite, runID).Add(float64(counts.Skipped))
	runDuration.WithLabelValues(suite, runID).Set(duration.Seconds())
}
