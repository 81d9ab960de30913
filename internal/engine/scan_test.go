package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/source"
)

func TestNewValidatesCollaborators(t *testing.T) {
	_, err := New(nil, oracle.All(newFakeOracles()))
	assert.ErrorIs(t, err, errors.ErrConfig)

	_, err = New(source.NewMemory(nil), oracle.Oracles{Analyzer: newFakeOracles()})
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestScanSwitchesEnvironmentBeforePreview(t *testing.T) {
	h := newHarness(t, testFiles())

	var envAtPreview string
	h.oracles.preview = func(req oracle.PreviewRequest) (string, error) {
		envAtPreview = h.engine.Environment()
		assert.Equal(t, "16.10.0", req.RuntimeVersion)
		return "<p>preview</p>", nil
	}

	analysis, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.NoError(t, err)

	assert.Equal(t, "16.10.0", analysis.RuntimeVersion)
	assert.Equal(t, "16.10.0", envAtPreview)

	state := h.engine.Snapshot()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Equal(t, "<p>preview</p>", state.Preview)
	require.NotNil(t, state.Analysis)
	require.NotNil(t, state.Plan)

	msgs := messages(state.Logs)
	active := indexOf(msgs, "Node.js 16.10.0 is now active.")
	compiling := indexOf(msgs, "Compiling source code for initial preview...")
	require.GreaterOrEqual(t, active, 0)
	assert.Less(t, active, compiling)
	assert.GreaterOrEqual(t, indexOf(msgs, "Upgrade plan ready: 2 steps."), 0)
}

func TestScanFetchesCriticalFilesOnly(t *testing.T) {
	h := newHarness(t, testFiles())
	h.scan(t)

	paths := make([]string, 0)
	for _, f := range h.engine.Snapshot().Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"package.json", "src/app/app.module.ts", "src/main.ts"}, paths)
}

func TestScanCapsCriticalFiles(t *testing.T) {
	h := newHarness(t, testFiles(), func(c *Config) { c.MaxCriticalFiles = 1 })
	h.scan(t)
	assert.Len(t, h.engine.Snapshot().Files, 1)
}

func TestSelectCritical(t *testing.T) {
	paths := []string{"apps/web/package.json", "src/main.ts", "src/main.tsx", "src/domain.ts", "package.json"}
	got := selectCritical(paths, []string{"package.json", "src/main.ts"}, 10)
	assert.Equal(t, []string{"apps/web/package.json", "src/main.ts", "package.json"}, got)
}

func TestScanEmptyRepositoryLeavesNothing(t *testing.T) {
	h := newHarness(t, map[string]string{})

	analysis, err := h.engine.Scan(context.Background(), "acme/empty", "")
	require.Error(t, err)
	assert.Nil(t, analysis)
	assert.ErrorIs(t, err, errors.ErrScan)

	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrCodeScanEmpty, code)

	state := h.engine.Snapshot()
	assert.Nil(t, state.Analysis)
	assert.Nil(t, state.Plan)
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Zero(t, h.oracles.Calls(oracle.NameAnalysis))
	assert.Equal(t, "error", string(state.Logs[len(state.Logs)-1].Level))
}

func TestScanRequiresManifest(t *testing.T) {
	h := newHarness(t, map[string]string{"src/main.ts": "bootstrap();"})

	_, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.Error(t, err)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrCodeScanManifestMissing, code)
	assert.ErrorIs(t, err, errors.ErrScan)
}

type failingSource struct {
	listErr  error
	fetchErr error
}

func (f failingSource) Name() string { return "failing" }

func (f failingSource) ListFiles(context.Context, string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []string{"package.json", "src/main.ts"}, nil
}

func (f failingSource) FetchFile(_ context.Context, _, path string) (string, bool, error) {
	if f.fetchErr != nil {
		return "", false, f.fetchErr
	}
	if path == "package.json" {
		return testManifest, true, nil
	}
	return "", false, nil
}

func TestScanSurfacesSourceErrors(t *testing.T) {
	tests := []struct {
		name string
		src  failingSource
		kind error
	}{
		{
			name: "unauthorized listing",
			src:  failingSource{listErr: retry.Fatal(errors.NewSourceUnauthorizedError("acme/app"))},
			kind: errors.ErrUnauthorized,
		},
		{
			name: "rate limited fetch",
			src:  failingSource{fetchErr: retry.Fatal(errors.NewSourceRateLimitedError("acme/app"))},
			kind: errors.ErrRateLimited,
		},
		{
			name: "missing repository",
			src:  failingSource{listErr: retry.Fatal(errors.NewSourceNotFoundError("acme/app"))},
			kind: errors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Retry = fastRetry()
			e, err := New(tt.src, oracle.All(newFakeOracles()), WithConfig(cfg))
			require.NoError(t, err)

			_, err = e.Scan(context.Background(), "acme/app", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrScan)
			assert.ErrorIs(t, err, tt.kind)
			assert.Nil(t, e.Snapshot().Analysis)
		})
	}
}

func TestScanSkipsUnreadableFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry = fastRetry()
	e, err := New(failingSource{}, oracle.All(newFakeOracles()), WithConfig(cfg))
	require.NoError(t, err)

	_, err = e.Scan(context.Background(), "acme/app", "")
	require.NoError(t, err)

	state := e.Snapshot()
	require.Len(t, state.Files, 1)
	assert.GreaterOrEqual(t, indexOf(messages(state.Logs), "Skipping src/main.ts"), 0)
}

func TestScanRetriesTransientAnalysisFailures(t *testing.T) {
	h := newHarness(t, testFiles())

	failures := 2
	h.oracles.analyze = func(oracle.AnalysisRequest) (*plan.ProjectAnalysis, error) {
		if failures > 0 {
			failures--
			return nil, retry.Transient(stderrors.New("API error (status 503)"))
		}
		return &plan.ProjectAnalysis{CurrentVersion: "13.0.0", RuntimeVersion: "16.14.0"}, nil
	}

	analysis, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.NoError(t, err)
	assert.Equal(t, "16.14.0", analysis.RuntimeVersion)
	assert.Equal(t, 3, h.oracles.Calls(oracle.NameAnalysis))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Retries.WithLabelValues(oracle.NameAnalysis)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OracleCalls.WithLabelValues(oracle.NameAnalysis, "true")))
}

func TestScanMalformedAnalysis(t *testing.T) {
	h := newHarness(t, testFiles())
	h.oracles.analyze = func(oracle.AnalysisRequest) (*plan.ProjectAnalysis, error) {
		return nil, retry.Fatal(errors.NewMalformedResponseError(oracle.NameAnalysis, stderrors.New("missing currentVersion")))
	}

	_, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrScan)
	assert.ErrorIs(t, err, errors.ErrMalformedResponse)
	assert.Equal(t, 1, h.oracles.Calls(oracle.NameAnalysis))
	assert.Nil(t, h.engine.Snapshot().Analysis)
}

func TestScanKeepsAnalysisWhenPlanningFails(t *testing.T) {
	h := newHarness(t, testFiles())
	h.oracles.plan = func(oracle.PlanRequest) (*plan.UpgradePlan, error) {
		return nil, retry.Fatal(stderrors.New("quota exhausted"))
	}

	analysis, err := h.engine.Scan(context.Background(), "acme/app", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPlan)
	require.NotNil(t, analysis)

	state := h.engine.Snapshot()
	assert.NotNil(t, state.Analysis)
	assert.Nil(t, state.Plan)
}

func TestPlanBackfillsRuntimeAndResetsStatus(t *testing.T) {
	h := newHarness(t, testFiles())
	h.scan(t)

	p := h.engine.Snapshot().Plan
	require.Len(t, p.Steps, 2)
	assert.Equal(t, []plan.Status{plan.StatusPending, plan.StatusPending}, statuses(p))
	assert.Equal(t, "16.13.0", p.Steps[0].RuntimeVersionRequired)
	assert.Equal(t, "18.10.0", p.Steps[1].RuntimeVersionRequired)
	assert.Equal(t, p.Steps[0].ToVersion, p.Steps[1].FromVersion)
}

func TestPlanSendsDependencySample(t *testing.T) {
	h := newHarness(t, testFiles())

	var got oracle.PlanRequest
	h.oracles.plan = func(req oracle.PlanRequest) (*plan.UpgradePlan, error) {
		got = req
		return chain("13", "14"), nil
	}

	deps := make([]plan.Dependency, 8)
	for i := range deps {
		deps[i] = plan.Dependency{Name: string(rune('a' + i))}
	}
	p, err := h.engine.Plan(context.Background(), &plan.ProjectAnalysis{CurrentVersion: "13.0.0", Dependencies: deps}, "14.0.0")
	require.NoError(t, err)

	assert.Len(t, got.Dependencies, oracle.MaxDependencySample)
	assert.Equal(t, "14.0.0", got.TargetVersion)
	assert.Len(t, p.Steps, 1)
}

func TestPlanRejectsBrokenChain(t *testing.T) {
	h := newHarness(t, testFiles())
	h.oracles.plan = func(oracle.PlanRequest) (*plan.UpgradePlan, error) {
		p := chain("13", "14", "15")
		p.Steps[1].FromVersion = "13"
		return p, nil
	}

	_, err := h.engine.Plan(context.Background(), &plan.ProjectAnalysis{CurrentVersion: "13.0.0"}, "15.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPlan)
	assert.Nil(t, h.engine.Snapshot().Plan)
}

func TestPlanRequiresAnalysis(t *testing.T) {
	h := newHarness(t, testFiles())
	_, err := h.engine.Plan(context.Background(), nil, "15.0.0")
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrCodePlanNotReady, code)
}
