package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"CommandExecutions", m.CommandExecutions},
		{"CommandDuration", m.CommandDuration},
		{"ProviderCalls", m.ProviderCalls},
		{"ProviderLatency", m.ProviderLatency},
		{"ProviderErrors", m.ProviderErrors},
		{"ProviderTokens", m.ProviderTokens},
		{"OracleCalls", m.OracleCalls},
		{"OracleLatency", m.OracleLatency},
		{"Retries", m.Retries},
		{"SourceRequests", m.SourceRequests},
		{"ScanFiles", m.ScanFiles},
		{"StepTransitions", m.StepTransitions},
		{"StepDuration", m.StepDuration},
		{"FilesChanged", m.FilesChanged},
		{"ApprovalLatency", m.ApprovalLatency},
		{"Errors", m.Errors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestProviderMetrics(t *testing.T) {
	m := Nop()

	m.ProviderCalls.WithLabelValues("gemini", "flash", "true").Inc()
	m.ProviderLatency.WithLabelValues("gemini", "flash").Observe(2.5)
	m.ProviderTokens.WithLabelValues("gemini", "flash", "input").Add(1000)
	m.ProviderErrors.WithLabelValues("gemini", "flash", "rate_limit").Inc()

	if got := testutil.ToFloat64(m.ProviderCalls.WithLabelValues("gemini", "flash", "true")); got != 1 {
		t.Errorf("ProviderCalls = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.ProviderTokens.WithLabelValues("gemini", "flash", "input")); got != 1000 {
		t.Errorf("ProviderTokens input = %v, want 1000", got)
	}

	if got := testutil.ToFloat64(m.ProviderErrors.WithLabelValues("gemini", "flash", "rate_limit")); got != 1 {
		t.Errorf("ProviderErrors = %v, want 1", got)
	}
}

func TestStepMetrics(t *testing.T) {
	m := Nop()

	m.StepTransitions.WithLabelValues("PENDING", "IN_PROGRESS").Inc()
	m.StepTransitions.WithLabelValues("PENDING", "IN_PROGRESS").Inc()
	m.StepDuration.WithLabelValues("true").Observe(12)
	m.FilesChanged.WithLabelValues().Observe(3)

	if got := testutil.ToFloat64(m.StepTransitions.WithLabelValues("PENDING", "IN_PROGRESS")); got != 2 {
		t.Errorf("StepTransitions = %v, want 2", got)
	}

	if got := testutil.CollectAndCount(m.StepDuration); got != 1 {
		t.Errorf("StepDuration series = %v, want 1", got)
	}
}

func TestNopRegistriesAreIndependent(t *testing.T) {
	a := Nop()
	b := Nop()

	a.Retries.WithLabelValues("plan").Inc()

	if got := testutil.ToFloat64(b.Retries.WithLabelValues("plan")); got != 0 {
		t.Errorf("Retries on second instance = %v, want 0", got)
	}
}
