package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for hopper
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec

	// Provider operation metrics
	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	ProviderTokens  *prometheus.CounterVec

	// Oracle metrics
	OracleCalls   *prometheus.CounterVec
	OracleLatency *prometheus.HistogramVec
	Retries       *prometheus.CounterVec

	// Source provider metrics
	SourceRequests *prometheus.CounterVec
	ScanFiles      *prometheus.CounterVec

	// Migration step metrics
	StepTransitions *prometheus.CounterVec
	StepDuration    *prometheus.HistogramVec
	FilesChanged    *prometheus.HistogramVec
	ApprovalLatency *prometheus.HistogramVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Command metrics
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		// Provider metrics
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_provider_calls_total",
				Help: "Total number of AI provider API calls",
			},
			[]string{"provider", "model", "success"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_provider_latency_seconds",
				Help:    "AI provider API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider", "model"},
		),
		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_provider_errors_total",
				Help: "Total number of AI provider errors",
			},
			[]string{"provider", "model", "error_type"},
		),
		ProviderTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_provider_tokens_total",
				Help: "Total tokens consumed by AI provider calls",
			},
			[]string{"provider", "model", "token_type"},
		),

		// Oracle metrics
		OracleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_oracle_calls_total",
				Help: "Total number of oracle invocations, retries excluded",
			},
			[]string{"oracle", "success"},
		),
		OracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_oracle_latency_seconds",
				Help:    "Oracle invocation latency in seconds, retries included",
				Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"oracle"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_retries_total",
				Help: "Total number of retried calls",
			},
			[]string{"operation"},
		),

		// Source metrics
		SourceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_source_requests_total",
				Help: "Total number of source provider requests",
			},
			[]string{"provider", "operation", "success"},
		),
		ScanFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_scan_files_total",
				Help: "Critical files handled during scans",
			},
			[]string{"outcome"},
		),

		// Step metrics
		StepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_step_transitions_total",
				Help: "Total number of step status transitions",
			},
			[]string{"from", "to"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_step_duration_seconds",
				Help:    "Step execution duration in seconds",
				Buckets: []float64{1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
			[]string{"success"},
		),
		FilesChanged: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_step_files_changed",
				Help:    "Number of files changed by a step",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{},
		),
		ApprovalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hopper_approval_latency_seconds",
				Help:    "Time a step waited for confirmation in seconds",
				Buckets: []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
			},
			[]string{},
		),

		// Error metrics (by structured error code)
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// Nop returns metrics registered on a throwaway registry, for callers that do
// not export metrics.
func Nop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
