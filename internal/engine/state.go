package engine

import (
	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// Phase is the coarse position of a run.
type Phase string

const (
	PhaseIdle                 Phase = "IDLE"
	PhaseScanning             Phase = "SCANNING"
	PhasePlanning             Phase = "PLANNING"
	PhaseReady                Phase = "READY"
	PhaseExecuting            Phase = "EXECUTING"
	PhaseAwaitingConfirmation Phase = "AWAITING_CONFIRMATION"
	PhaseComplete             Phase = "COMPLETE"
)

// RunState is a read-only copy of everything an observer may render.
type RunState struct {
	Phase       Phase                   `json:"phase" yaml:"phase"`
	ActiveRole  eventlog.Role           `json:"activeRole" yaml:"activeRole"`
	SourceRef   string                  `json:"sourceRef" yaml:"sourceRef"`
	Environment string                  `json:"environment" yaml:"environment"`
	Analysis    *plan.ProjectAnalysis   `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Plan        *plan.UpgradePlan       `json:"plan,omitempty" yaml:"plan,omitempty"`
	Files       []workspace.VirtualFile `json:"files" yaml:"files"`
	Preview     string                  `json:"preview" yaml:"preview"`
	// FailedStep is the index of a step left IN_PROGRESS by a failed
	// attempt, or -1.
	FailedStep int              `json:"failedStep" yaml:"failedStep"`
	Logs       []eventlog.Entry `json:"logs" yaml:"logs"`
}

// Snapshot returns a copy of the run state. It is safe to call while an
// operation is running.
func (e *Engine) Snapshot() RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return RunState{
		Phase:       e.phase,
		ActiveRole:  e.role,
		SourceRef:   e.sourceRef,
		Environment: e.environment,
		Analysis:    e.analysis.Clone(),
		Plan:        e.plan.Clone(),
		Files:       e.files.Files(),
		Preview:     e.preview,
		FailedStep:  e.failedStep,
		Logs:        e.events.Entries(),
	}
}

// Environment returns the active runtime version.
func (e *Engine) Environment() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.environment
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}
