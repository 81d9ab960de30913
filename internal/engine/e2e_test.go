package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/source"
)

func TestOfflineDemoRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry = fastRetry()
	e, err := New(source.Demo(), oracle.All(oracle.NewOffline(oracle.DefaultProfile())),
		WithConfig(cfg), WithLogger(log.Discard()))
	require.NoError(t, err)
	ctx := context.Background()

	analysis, err := e.Scan(ctx, source.DemoRef, "")
	require.NoError(t, err)
	assert.Equal(t, "13.0.0", analysis.CurrentVersion)
	assert.Equal(t, "16.10.0", e.Environment())

	p := e.Snapshot().Plan
	require.Len(t, p.Steps, 3)
	require.NoError(t, p.Validate())

	require.NoError(t, e.StartMigration(ctx))
	for i := range p.Steps {
		state := e.Snapshot()
		require.Equal(t, plan.StatusWaitingConfirmation, state.Plan.Steps[i].Status, "step %d", i)
		require.LessOrEqual(t, activeCount(state.Plan), 1)

		changes := state.Plan.Steps[i].FileChanges
		require.Len(t, changes, 1)
		assert.Equal(t, "package.json", changes[0].FileName)

		require.NoError(t, e.ConfirmStep(ctx, i))
	}

	state := e.Snapshot()
	assert.Equal(t, PhaseComplete, state.Phase)
	assert.Equal(t, "18.13.0", state.Environment)
	assert.Contains(t, state.Preview, "Welcome to Angular 16")

	for _, f := range state.Files {
		if f.Path == "package.json" {
			assert.Contains(t, f.Content, `"@angular/core": "~16.0.0"`)
			assert.Contains(t, f.Content, `"@angular/cli": "~16.0.0"`)
			assert.Contains(t, f.Content, `"@angular-devkit/build-angular": "~13.0.1"`)
		}
	}
}
