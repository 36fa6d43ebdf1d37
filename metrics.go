package reeltrust

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics mirror the counter/histogram pair the pack's xg2g prober.go
// registers around its own long-running external-process calls — sign and
// verify are this module's equivalent "blocking on an external process"
// operations (spec.md §5).
var (
	signOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reeltrust_sign_operations_total",
		Help: "Total number of Sign operations, partitioned by outcome.",
	}, []string{"outcome"})

	verifyOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reeltrust_verify_operations_total",
		Help: "Total number of Verify operations, partitioned by outcome.",
	}, []string{"outcome"})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reeltrust_operation_duration_seconds",
		Help:    "Duration of Sign/Verify operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(signOperations, verifyOperations, operationDuration)
	})
}

// observeOperation records a Sign/Verify call's duration and outcome.
func observeOperation(operation, outcome string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	switch operation {
	case "sign":
		signOperations.WithLabelValues(outcome).Inc()
	case "verify":
		verifyOperations.WithLabelValues(outcome).Inc()
	}
}

func defaultScratchDir() string {
	return filepath.Join(os.TempDir(), "reeltrust-scratch")
}
