package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-junction/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "junction"
)

var (
	Debug                bool = true
	validStatuses             = []types.ExecutionStatus{types.StatusSuccessful, types.StatusFailed, types.StatusAborted}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "executions_total",
		Help:      "Count of finished executions by kind and status",
	}, []string{
		"run_id",
		"kind",
		"status",
	})

	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "skipped_total",
		Help:      "Count of skipped executions",
	}, []string{
		"run_id",
		"kind",
	})

	reportEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "report_entries_total",
		Help:      "Count of published report entries",
	}, []string{
		"run_id",
	})

	runnerAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runner_aborts_total",
		Help:      "Count of legacy runners that terminated abnormally",
	}, []string{
		"runner",
	})

	runnerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "runner_duration_seconds",
		Help:      "Wall clock time spent driving one legacy runner",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{
		"runner",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of test runs",
	}, []string{
		"plan",
		"run_id",
		"result",
	})

	runTestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_total",
		Help:      "Total number of tests seen by a run",
	}, []string{
		"plan",
		"run_id",
	})

	runTestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_failed",
		Help:      "Number of failed or aborted tests in a run",
	}, []string{
		"plan",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of test runs in seconds",
	}, []string{
		"plan",
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

func RecordExecution(runID string, kind types.IdentifierKind, status types.ExecutionStatus) {
	if !isValidStatus(status) {
		log.Error("RecordExecution - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "executions_total",
			"run_id", runID,
			"kind", kind,
			"status", status)
	}
	executionsTotal.WithLabelValues(runID, string(kind), string(status)).Inc()
}

func RecordSkipped(runID string, kind types.IdentifierKind) {
	skippedTotal.WithLabelValues(runID, string(kind)).Inc()
}

func RecordReportEntry(runID string) {
	reportEntriesTotal.WithLabelValues(runID).Inc()
}

// RecordRunnerAbort counts a runner that returned an error, panicked or was interrupted
func RecordRunnerAbort(runner string, err error) {
	if Debug {
		log.Debug("metric inc",
			"m", "runner_aborts_total",
			"runner", runner,
			"err", err)
	}
	runnerAbortsTotal.WithLabelValues(runner).Inc()
	RecordErrorDetails("runner_abort", err)
}

func RecordRunnerDuration(runner string, result types.ExecutionStatus, duration time.Duration) {
	runnerDuration.WithLabelValues(runner, string(result)).Observe(duration.Seconds())
}

func RecordRun(
	plan string,
	runID string,
	result string,
	total int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(plan, runID, result).Set(1)
	runTestsTotal.WithLabelValues(plan, runID).Add(float64(total))
	runTestsFailed.WithLabelValues(plan, runID).Add(float64(failed))
	runDuration.WithLabelValues(plan, runID).Set(duration.Seconds())
}

func isValidStatus(status types.ExecutionStatus) bool {
	return slices.Contains(validStatuses, status)
}
