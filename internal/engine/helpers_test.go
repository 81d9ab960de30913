package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/source"
)

const testManifest = `{"dependencies":{"@angular/core":"~13.0.0","rxjs":"~7.4.0"}}`

func testFiles() map[string]string {
	return map[string]string{
		"package.json":               testManifest,
		"src/main.ts":                "bootstrap();",
		"src/app/app.module.ts":      "@NgModule({})",
		"src/app/app.component.html": "<h1>hi</h1>",
		"README.md":                  "# app",
	}
}

// fakeOracles implements every oracle role with overridable behaviour and
// counts calls per role.
type fakeOracles struct {
	mu        sync.Mutex
	calls     map[string]int
	analyze   func(oracle.AnalysisRequest) (*plan.ProjectAnalysis, error)
	plan      func(oracle.PlanRequest) (*plan.UpgradePlan, error)
	transform func(oracle.TransformRequest) (string, error)
	preview   func(oracle.PreviewRequest) (string, error)
}

func newFakeOracles() *fakeOracles {
	return &fakeOracles{
		calls: make(map[string]int),
		analyze: func(oracle.AnalysisRequest) (*plan.ProjectAnalysis, error) {
			return &plan.ProjectAnalysis{CurrentVersion: "13.0.0", ComplexityScore: 3}, nil
		},
		plan: func(req oracle.PlanRequest) (*plan.UpgradePlan, error) {
			return chain("13", "14", "15"), nil
		},
		transform: func(req oracle.TransformRequest) (string, error) {
			return req.Content, nil
		},
		preview: func(req oracle.PreviewRequest) (string, error) {
			return fmt.Sprintf("<p>v%s on %s</p>", req.Version, req.RuntimeVersion), nil
		},
	}
}

func (f *fakeOracles) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeOracles) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeOracles) Analyze(_ context.Context, req oracle.AnalysisRequest) (*plan.ProjectAnalysis, error) {
	f.count(oracle.NameAnalysis)
	return f.analyze(req)
}

func (f *fakeOracles) Plan(_ context.Context, req oracle.PlanRequest) (*plan.UpgradePlan, error) {
	f.count(oracle.NamePlanning)
	return f.plan(req)
}

func (f *fakeOracles) Transform(_ context.Context, req oracle.TransformRequest) (string, error) {
	f.count(oracle.NameTransformation)
	return f.transform(req)
}

func (f *fakeOracles) Preview(_ context.Context, req oracle.PreviewRequest) (string, error) {
	f.count(oracle.NamePreview)
	return f.preview(req)
}

// chain builds a plan hopping through versions without runtime versions.
func chain(versions ...string) *plan.UpgradePlan {
	p := &plan.UpgradePlan{RiskLevel: plan.RiskLow, EstimatedDuration: "1h"}
	for i := 0; i+1 < len(versions); i++ {
		p.Steps = append(p.Steps, plan.Step{
			StepID:      i + 1,
			FromVersion: versions[i],
			ToVersion:   versions[i+1],
			Status:      plan.StatusSuccess,
		})
	}
	return p
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 4, InitialDelay: time.Millisecond, Multiplier: 1.5}
}

type harness struct {
	engine  *Engine
	oracles *fakeOracles
	source  *source.Memory
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, files map[string]string, configure ...func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TargetVersion = "15.0.0"
	cfg.Retry = fastRetry()
	for _, c := range configure {
		c(&cfg)
	}

	h := &harness{
		oracles: newFakeOracles(),
		source:  source.NewMemory(files),
		metrics: metrics.Nop(),
	}
	e, err := New(h.source, oracle.All(h.oracles),
		WithConfig(cfg),
		WithMetrics(h.metrics),
		WithLogger(log.Discard()),
	)
	require.NoError(t, err)
	h.engine = e
	t.Cleanup(e.Close)
	return h
}

func (h *harness) scan(t *testing.T) {
	t.Helper()
	_, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.NoError(t, err)
}

func statuses(p *plan.UpgradePlan) []plan.Status {
	out := make([]plan.Status, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Status
	}
	return out
}

func activeCount(p *plan.UpgradePlan) int {
	n := 0
	for _, s := range p.Steps {
		if s.Status.IsActive() {
			n++
		}
	}
	return n
}

func messages(entries []eventlog.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func indexOf(msgs []string, substr string) int {
	for i, m := range msgs {
		if strings.Contains(m, substr) {
			return i
		}
	}
	return -1
}
