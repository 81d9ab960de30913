package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/patch"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// ExecuteStep transforms the working files for the step at index and
// renders a preview, leaving the step WAITING_CONFIRMATION.
//
// The step must be PENDING with every earlier step SUCCESS and nothing else
// active, or be the step a previous attempt failed on. A failed attempt
// restores the files, leaves the step IN_PROGRESS and returns a step
// execution error.
func (e *Engine) ExecuteStep(ctx context.Context, index int) error {
	if err := e.acquire("execute step"); err != nil {
		return err
	}
	defer e.op.Unlock()
	return e.executeStep(ctx, index)
}

// StartMigration executes the first step that has not run yet, or retries
// the step a previous attempt failed on.
func (e *Engine) StartMigration(ctx context.Context) error {
	if err := e.acquire("start migration"); err != nil {
		return err
	}
	defer e.op.Unlock()

	p, err := e.requirePlan()
	if err != nil {
		return err
	}
	if e.failedStep >= 0 {
		return e.executeStep(ctx, e.failedStep)
	}
	index, ok := p.NextPending()
	if !ok {
		return e.reject(eventlog.RoleExecutor, errors.New(errors.ErrCodePlanNotReady, "no pending steps to execute"))
	}
	return e.executeStep(ctx, index)
}

func (e *Engine) requirePlan() (*plan.UpgradePlan, error) {
	if e.plan == nil {
		return nil, e.reject(eventlog.RoleExecutor,
			errors.New(errors.ErrCodePlanNotReady, "no upgrade plan; run a scan first"))
	}
	return e.plan, nil
}

// reject logs a refused operation without touching the run state.
func (e *Engine) reject(role eventlog.Role, err error) error {
	e.countError(err, "engine")
	e.events.Errorf(role, "Error: %s", errors.Summary(err))
	return err
}

func (e *Engine) transition(index int, to plan.Status) error {
	var (
		from plan.Status
		err  error
	)
	e.update(func() {
		if index >= 0 && index < len(e.plan.Steps) {
			from = e.plan.Steps[index].Status
		}
		err = e.plan.Transition(index, to)
	})
	if err != nil {
		return err
	}
	e.metrics.StepTransitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

func (e *Engine) executeStep(ctx context.Context, index int) error {
	p, err := e.requirePlan()
	if err != nil {
		return err
	}

	retrying := e.failedStep >= 0 && index == e.failedStep
	if !retrying {
		if err := p.CanStart(index); err != nil {
			return e.reject(eventlog.RoleExecutor, err)
		}
		if err := e.transition(index, plan.StatusInProgress); err != nil {
			return e.reject(eventlog.RoleExecutor, err)
		}
	}
	step := p.Steps[index]

	ctx, span := telemetry.StartStepSpan(ctx, step.StepID, step.ToVersion)
	defer span.End()
	start := e.now()

	e.setPhase(PhaseExecuting, eventlog.RoleExecutor)
	if retrying {
		e.events.Infof(eventlog.RoleExecutor, "Retrying step %d: v%s -> v%s", step.StepID, step.FromVersion, step.ToVersion)
	} else {
		e.events.Infof(eventlog.RoleExecutor, "Executing step %d: v%s -> v%s", step.StepID, step.FromVersion, step.ToVersion)
	}

	runtime := e.cfg.Profile.Runtime
	e.events.Commandf(eventlog.RoleExecutor, "Switching to required %s %s...", runtime, step.RuntimeVersionRequired)
	e.update(func() { e.environment = step.RuntimeVersionRequired })
	e.events.Successf(eventlog.RoleExecutor, "Environment ready with %s %s.", runtime, step.RuntimeVersionRequired)

	before := e.files.Clone()
	changes := patch.NewStepPatch(step.StepID)

	for _, path := range e.files.Paths() {
		if !e.cfg.StepFilter.Match(path) {
			continue
		}
		content, _ := e.files.Get(path)

		e.events.Infof(eventlog.RoleExecutor, "Refactoring %s...", path)
		updated, err := consult(ctx, e, oracle.NameTransformation, eventlog.RoleExecutor,
			func(ctx context.Context) (string, error) {
				return e.oracles.Transformer.Transform(ctx, oracle.TransformRequest{
					Path:        path,
					Content:     content,
					FromVersion: step.FromVersion,
					ToVersion:   step.ToVersion,
				})
			})
		if err != nil {
			telemetry.RecordError(span, err)
			return e.failStep(index, before, start,
				errors.Wrap(errors.ErrCodeStepTransform, fmt.Sprintf("step %d: transforming %s failed", step.StepID, path), err))
		}

		if changes.Add(path, content, updated) {
			e.update(func() { e.files.Put(path, updated) })
			e.events.Successf(eventlog.RoleExecutor, "Updated %s.", path)
		}
	}

	e.update(func() { _ = e.plan.RecordChanges(index, changes.Files()) })
	e.metrics.FilesChanged.WithLabelValues().Observe(float64(changes.Len()))

	e.setPhase(PhaseExecuting, eventlog.RoleQA)
	e.events.Infof(eventlog.RoleQA, "Building updated app (%s v%s) with %s %s...",
		e.cfg.Profile.Framework, step.ToVersion, runtime, step.RuntimeVersionRequired)
	preview, err := consult(ctx, e, oracle.NamePreview, eventlog.RoleQA,
		func(ctx context.Context) (string, error) {
			return e.oracles.Previewer.Preview(ctx, oracle.PreviewRequest{
				Files:          e.files.Files(),
				Version:        step.ToVersion,
				RuntimeVersion: step.RuntimeVersionRequired,
			})
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return e.failStep(index, before, start,
			errors.Wrap(errors.ErrCodeStepPreview, fmt.Sprintf("step %d: preview build failed", step.StepID), err))
	}

	if err := e.transition(index, plan.StatusWaitingConfirmation); err != nil {
		return e.failStep(index, before, start, err)
	}
	e.update(func() {
		e.preview = preview
		e.failedStep = -1
		e.waitingSince = e.now()
		e.phase = PhaseAwaitingConfirmation
		e.role = eventlog.RoleIdle
	})

	stats := changes.Stats()
	e.events.Successf(eventlog.RoleQA, "Step %d ready for review: %d files changed (+%d -%d).",
		step.StepID, stats.FilesChanged, stats.Insertions, stats.Deletions)
	e.metrics.StepDuration.WithLabelValues("true").Observe(e.now().Sub(start).Seconds())
	telemetry.RecordSuccess(span)
	return nil
}

// failStep restores the pre-step files and parks the step for a retry.
func (e *Engine) failStep(index int, before *workspace.Snapshot, start time.Time, err error) error {
	e.update(func() {
		e.files.Restore(before)
		_ = e.plan.RecordChanges(index, nil)
		e.failedStep = index
		e.phase = PhaseIdle
		e.role = eventlog.RoleIdle
	})
	e.countError(err, "step")
	e.metrics.StepDuration.WithLabelValues("false").Observe(e.now().Sub(start).Seconds())
	e.events.Errorf(eventlog.RoleExecutor, "Step Failed: %s", errors.Summary(err))
	return err
}

// ConfirmStep accepts the step waiting at index and executes the next one.
// Confirming the last step completes the run.
func (e *Engine) ConfirmStep(ctx context.Context, index int) error {
	if err := e.acquire("confirm step"); err != nil {
		return err
	}
	defer e.op.Unlock()

	p, err := e.requirePlan()
	if err != nil {
		return err
	}
	if err := e.transition(index, plan.StatusSuccess); err != nil {
		return e.reject(eventlog.RoleExecutor, err)
	}
	e.metrics.ApprovalLatency.WithLabelValues().Observe(e.now().Sub(e.waitingSince).Seconds())
	step := p.Steps[index]
	e.events.Successf(eventlog.RoleExecutor, "Step %d confirmed: project is now on v%s.", step.StepID, step.ToVersion)

	if next := index + 1; next < len(p.Steps) {
		return e.executeStep(ctx, next)
	}

	if p.Complete() {
		e.setPhase(PhaseComplete, eventlog.RoleIdle)
		e.events.Successf(eventlog.RoleExecutor, "Migration complete: %s v%s running on %s %s.",
			e.cfg.Profile.Framework, step.ToVersion, e.cfg.Profile.Runtime, e.Environment())
		return nil
	}
	e.setPhase(PhaseReady, eventlog.RoleIdle)
	return nil
}

// FailStep abandons the step at index, which must be IN_PROGRESS after a
// failed attempt. The step becomes FAILED and can only be rolled back.
func (e *Engine) FailStep(index int, reason string) error {
	if err := e.acquire("fail step"); err != nil {
		return err
	}
	defer e.op.Unlock()

	if _, err := e.requirePlan(); err != nil {
		return err
	}
	if err := e.transition(index, plan.StatusFailed); err != nil {
		return e.reject(eventlog.RoleExecutor, err)
	}
	e.update(func() {
		if e.failedStep == index {
			e.failedStep = -1
		}
		e.phase = PhaseIdle
		e.role = eventlog.RoleIdle
	})
	e.events.Errorf(eventlog.RoleExecutor, "Step %d marked failed: %s", e.plan.Steps[index].StepID, reason)
	return nil
}

// RollbackStep marks a SUCCESS or FAILED step ROLLED_BACK and reverts its
// recorded changes on files that still hold the step's output. Files changed
// again by a later step are left alone.
func (e *Engine) RollbackStep(index int) error {
	if err := e.acquire("roll back step"); err != nil {
		return err
	}
	defer e.op.Unlock()

	p, err := e.requirePlan()
	if err != nil {
		return err
	}
	if err := e.transition(index, plan.StatusRolledBack); err != nil {
		return e.reject(eventlog.RoleExecutor, err)
	}

	step := p.Steps[index]
	for i := len(step.FileChanges) - 1; i >= 0; i-- {
		diff := step.FileChanges[i]
		current, ok := e.files.Get(diff.FileName)
		if !ok || current != diff.ModifiedContent {
			e.events.Warnf(eventlog.RoleExecutor, "Not reverting %s: changed after step %d.", diff.FileName, step.StepID)
			continue
		}
		e.update(func() { e.files.Put(diff.FileName, diff.OriginalContent) })
		e.events.Infof(eventlog.RoleExecutor, "Reverted %s.", diff.FileName)
	}
	e.events.Warnf(eventlog.RoleExecutor, "Step %d rolled back (v%s -> v%s).", step.StepID, step.FromVersion, step.ToVersion)
	return nil
}
