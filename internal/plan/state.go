package plan

import (
	"fmt"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/patch"
)

// transitions lists every legal status change. Nothing ever returns to PENDING.
var transitions = map[Status][]Status{
	StatusPending:             {StatusInProgress},
	StatusInProgress:          {StatusWaitingConfirmation, StatusFailed},
	StatusWaitingConfirmation: {StatusSuccess},
	StatusSuccess:             {StatusRolledBack},
	StatusFailed:              {StatusRolledBack},
}

// CanTransition reports whether from -> to is a legal step transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the step at index to status to. It rejects illegal
// transitions and any change that would leave two steps active at once.
func (p *UpgradePlan) Transition(index int, to Status) error {
	step, err := p.step(index)
	if err != nil {
		return err
	}

	if !CanTransition(step.Status, to) {
		return errors.New(errors.ErrCodeStepTransition,
			fmt.Sprintf("step %d cannot move from %s to %s", step.StepID, step.Status, to))
	}

	if to.IsActive() {
		if active, ok := p.Active(); ok && active != index {
			return errors.New(errors.ErrCodeStepPrecondition,
				fmt.Sprintf("step %d is already %s", p.Steps[active].StepID, p.Steps[active].Status))
		}
	}

	step.Status = to
	return nil
}

// Active returns the index of the step that is IN_PROGRESS or WAITING_CONFIRMATION.
func (p *UpgradePlan) Active() (int, bool) {
	for i, s := range p.Steps {
		if s.Status.IsActive() {
			return i, true
		}
	}
	return -1, false
}

// NextPending returns the index of the first PENDING step.
func (p *UpgradePlan) NextPending() (int, bool) {
	for i, s := range p.Steps {
		if s.Status == StatusPending {
			return i, true
		}
	}
	return -1, false
}

// Complete reports whether every step succeeded.
func (p *UpgradePlan) Complete() bool {
	if len(p.Steps) == 0 {
		return false
	}
	for _, s := range p.Steps {
		if s.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// CanStart checks that the step at index may begin executing: it is PENDING,
// every earlier step succeeded, and no step is active.
func (p *UpgradePlan) CanStart(index int) error {
	step, err := p.step(index)
	if err != nil {
		return err
	}

	if step.Status != StatusPending {
		return errors.New(errors.ErrCodeStepPrecondition,
			fmt.Sprintf("step %d is %s, expected %s", step.StepID, step.Status, StatusPending))
	}

	if active, ok := p.Active(); ok {
		return errors.New(errors.ErrCodeStepPrecondition,
			fmt.Sprintf("step %d is %s", p.Steps[active].StepID, p.Steps[active].Status)).
			WithSuggestion("Confirm or resolve the active step first")
	}

	for i := 0; i < index; i++ {
		if p.Steps[i].Status != StatusSuccess {
			return errors.New(errors.ErrCodeStepPrecondition,
				fmt.Sprintf("step %d must succeed before step %d", p.Steps[i].StepID, step.StepID))
		}
	}

	return nil
}

// RecordChanges stores the diffs produced by executing the step at index.
func (p *UpgradePlan) RecordChanges(index int, diffs []patch.FileDiff) error {
	step, err := p.step(index)
	if err != nil {
		return err
	}
	step.FileChanges = append([]patch.FileDiff(nil), diffs...)
	return nil
}

func (p *UpgradePlan) step(index int) (*Step, error) {
	if index < 0 || index >= len(p.Steps) {
		return nil, errors.New(errors.ErrCodeStepIndex,
			fmt.Sprintf("step index %d out of range (plan has %d steps)", index, len(p.Steps)))
	}
	return &p.Steps[index], nil
}
