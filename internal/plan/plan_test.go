package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hoppererrors "github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/patch"
)

func threeStepPlan() *UpgradePlan {
	p := &UpgradePlan{
		Steps: []Step{
			{StepID: 1, FromVersion: "13", ToVersion: "14"},
			{StepID: 2, FromVersion: "14", ToVersion: "15"},
			{StepID: 3, FromVersion: "15", ToVersion: "16", RuntimeVersionRequired: "18.12.0"},
		},
		EstimatedDuration: "2 hours",
		RiskLevel:         RiskMedium,
	}
	p.Prepare()
	return p
}

func TestPrepare(t *testing.T) {
	p := threeStepPlan()

	for _, s := range p.Steps {
		assert.Equal(t, StatusPending, s.Status)
	}
	assert.Equal(t, "16.13.0", p.Steps[0].RuntimeVersionRequired)
	assert.Equal(t, "18.10.0", p.Steps[1].RuntimeVersionRequired)
	assert.Equal(t, "18.12.0", p.Steps[2].RuntimeVersionRequired, "oracle value is kept")
	require.NoError(t, p.Validate())
}

func TestCanTransition(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending:             {StatusInProgress},
		StatusInProgress:          {StatusWaitingConfirmation, StatusFailed},
		StatusWaitingConfirmation: {StatusSuccess},
		StatusSuccess:             {StatusRolledBack},
		StatusFailed:              {StatusRolledBack},
	}
	all := []Status{
		StatusPending, StatusInProgress, StatusWaitingConfirmation,
		StatusSuccess, StatusFailed, StatusRolledBack,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionHappyPath(t *testing.T) {
	p := threeStepPlan()

	require.NoError(t, p.CanStart(0))
	require.NoError(t, p.Transition(0, StatusInProgress))
	require.NoError(t, p.Transition(0, StatusWaitingConfirmation))

	idx, ok := p.Active()
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	require.NoError(t, p.Transition(0, StatusSuccess))
	_, ok = p.Active()
	assert.False(t, ok)

	next, ok := p.NextPending()
	require.True(t, ok)
	assert.Equal(t, 1, next)
	assert.False(t, p.Complete())
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	p := threeStepPlan()

	err := p.Transition(0, StatusSuccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hoppererrors.ErrInvalidTransition))
	assert.Equal(t, StatusPending, p.Steps[0].Status)

	err = p.Transition(0, StatusPending)
	assert.True(t, errors.Is(err, hoppererrors.ErrInvalidTransition))
}

func TestTransitionSingleActiveStep(t *testing.T) {
	p := threeStepPlan()
	require.NoError(t, p.Transition(0, StatusInProgress))

	err := p.Transition(1, StatusInProgress)
	require.Error(t, err)
	code, _ := hoppererrors.CodeOf(err)
	assert.Equal(t, hoppererrors.ErrCodeStepPrecondition, code)
	assert.Equal(t, StatusPending, p.Steps[1].Status)
}

func TestCanStart(t *testing.T) {
	p := threeStepPlan()

	err := p.CanStart(1)
	require.Error(t, err, "step 2 cannot start before step 1 succeeds")
	assert.True(t, errors.Is(err, hoppererrors.ErrInvalidTransition))

	err = p.CanStart(7)
	code, _ := hoppererrors.CodeOf(err)
	assert.Equal(t, hoppererrors.ErrCodeStepIndex, code)

	require.NoError(t, p.Transition(0, StatusInProgress))
	assert.Error(t, p.CanStart(0), "step already in progress")

	require.NoError(t, p.Transition(0, StatusWaitingConfirmation))
	require.NoError(t, p.Transition(0, StatusSuccess))
	assert.NoError(t, p.CanStart(1))
}

func TestRollbackFromSuccessAndFailed(t *testing.T) {
	p := threeStepPlan()
	require.NoError(t, p.Transition(0, StatusInProgress))
	require.NoError(t, p.Transition(0, StatusFailed))
	require.NoError(t, p.Transition(0, StatusRolledBack))
	assert.True(t, p.Steps[0].Status.IsTerminal())

	assert.Error(t, p.Transition(0, StatusInProgress), "rolled back steps never restart")
}

func TestComplete(t *testing.T) {
	p := threeStepPlan()
	for i := range p.Steps {
		require.NoError(t, p.CanStart(i))
		require.NoError(t, p.Transition(i, StatusInProgress))
		require.NoError(t, p.Transition(i, StatusWaitingConfirmation))
		require.NoError(t, p.Transition(i, StatusSuccess))
	}
	assert.True(t, p.Complete())
	assert.False(t, (&UpgradePlan{}).Complete())
}

func TestRecordChanges(t *testing.T) {
	p := threeStepPlan()
	diffs := []patch.FileDiff{{FileName: "package.json", OriginalContent: "a", ModifiedContent: "b"}}

	require.NoError(t, p.RecordChanges(0, diffs))
	diffs[0].FileName = "mutated"
	assert.Equal(t, "package.json", p.Steps[0].FileChanges[0].FileName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr bool
	}{
		{
			name:    "empty",
			steps:   nil,
			wantErr: true,
		},
		{
			name: "broken chain",
			steps: []Step{
				{StepID: 1, FromVersion: "13", ToVersion: "14", Status: StatusPending},
				{StepID: 2, FromVersion: "15", ToVersion: "16", Status: StatusPending},
			},
			wantErr: true,
		},
		{
			name: "chain with equivalent versions",
			steps: []Step{
				{StepID: 1, FromVersion: "13.0.0", ToVersion: "14", Status: StatusPending},
				{StepID: 2, FromVersion: "14.0.0", ToVersion: "15", Status: StatusPending},
			},
		},
		{
			name: "non increasing ids",
			steps: []Step{
				{StepID: 2, FromVersion: "13", ToVersion: "14", Status: StatusPending},
				{StepID: 2, FromVersion: "14", ToVersion: "15", Status: StatusPending},
			},
			wantErr: true,
		},
		{
			name: "missing version",
			steps: []Step{
				{StepID: 1, FromVersion: "13", Status: StatusPending},
			},
			wantErr: true,
		},
		{
			name: "bad status",
			steps: []Step{
				{StepID: 1, FromVersion: "13", ToVersion: "14", Status: "DONE"},
			},
			wantErr: true,
		},
		{
			name: "two active",
			steps: []Step{
				{StepID: 1, FromVersion: "13", ToVersion: "14", Status: StatusInProgress},
				{StepID: 2, FromVersion: "14", ToVersion: "15", Status: StatusWaitingConfirmation},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &UpgradePlan{Steps: tt.steps}
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, hoppererrors.ErrPlan))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseRiskLevel(t *testing.T) {
	r, err := ParseRiskLevel(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, r)

	_, err = ParseRiskLevel("extreme")
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	p := threeStepPlan()
	p.Steps[0].Commands = []string{"ng update"}

	c := p.Clone()
	c.Steps[0].Commands[0] = "changed"
	c.Steps[0].Status = StatusFailed

	assert.Equal(t, "ng update", p.Steps[0].Commands[0])
	assert.Equal(t, StatusPending, p.Steps[0].Status)

	var nilPlan *UpgradePlan
	assert.Nil(t, nilPlan.Clone())
}
