package plan

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/hopper/internal/patch"
)

// Status is the lifecycle state of an upgrade step.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusInProgress          Status = "IN_PROGRESS"
	StatusWaitingConfirmation Status = "WAITING_CONFIRMATION"
	StatusSuccess             Status = "SUCCESS"
	StatusFailed              Status = "FAILED"
	StatusRolledBack          Status = "ROLLED_BACK"
)

// IsActive returns true while the step holds the run: executing or awaiting confirmation.
func (s Status) IsActive() bool {
	return s == StatusInProgress || s == StatusWaitingConfirmation
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusRolledBack
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusInProgress, StatusWaitingConfirmation,
		StatusSuccess, StatusFailed, StatusRolledBack:
		return nil
	default:
		return fmt.Errorf("invalid step status: %s", s)
	}
}

// RiskLevel is the planner's overall risk estimate.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel accepts any casing of Low, Medium or High.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("invalid risk level: %q", s)
	}
}

// Dependency is one package declared by the project manifest.
type Dependency struct {
	Name           string `json:"name" yaml:"name" validate:"required"`
	CurrentVersion string `json:"currentVersion" yaml:"currentVersion"`
	TargetVersion  string `json:"targetVersion,omitempty" yaml:"targetVersion,omitempty"`
	IsDev          bool   `json:"isDev" yaml:"isDev"`
}

// ProjectAnalysis is produced once at scan time and never modified afterwards.
type ProjectAnalysis struct {
	CurrentVersion  string       `json:"currentVersion" yaml:"currentVersion" validate:"required"`
	RuntimeVersion  string       `json:"runtimeVersion" yaml:"runtimeVersion"`
	Dependencies    []Dependency `json:"dependencies" yaml:"dependencies" validate:"dive"`
	Customizations  []string     `json:"customizations" yaml:"customizations"`
	ComplexityScore float64      `json:"complexityScore" yaml:"complexityScore" validate:"omitempty,min=1,max=10"`
}

// Step is one version hop of the plan.
type Step struct {
	StepID                 int              `json:"stepId" yaml:"stepId"`
	FromVersion            string           `json:"fromVersion" yaml:"fromVersion" validate:"required"`
	ToVersion              string           `json:"toVersion" yaml:"toVersion" validate:"required"`
	RuntimeVersionRequired string           `json:"runtimeVersionRequired" yaml:"runtimeVersionRequired"`
	Description            string           `json:"description" yaml:"description"`
	Commands               []string         `json:"commands" yaml:"commands"`
	BreakingChanges        []string         `json:"breakingChanges" yaml:"breakingChanges"`
	Status                 Status           `json:"status" yaml:"status"`
	FileChanges            []patch.FileDiff `json:"fileChanges,omitempty" yaml:"fileChanges,omitempty"`
}

// UpgradePlan is the ordered chain of steps from the current version to the target.
type UpgradePlan struct {
	Steps             []Step    `json:"steps" yaml:"steps" validate:"dive"`
	EstimatedDuration string    `json:"estimatedDuration" yaml:"estimatedDuration"`
	RiskLevel         RiskLevel `json:"riskLevel" yaml:"riskLevel"`
}

// Clone returns a deep copy so observers never share slices with the engine.
func (p *UpgradePlan) Clone() *UpgradePlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		s.Commands = append([]string(nil), s.Commands...)
		s.BreakingChanges = append([]string(nil), s.BreakingChanges...)
		s.FileChanges = append([]patch.FileDiff(nil), s.FileChanges...)
		out.Steps[i] = s
	}
	return &out
}

// Clone returns a deep copy of the analysis.
func (a *ProjectAnalysis) Clone() *ProjectAnalysis {
	if a == nil {
		return nil
	}
	out := *a
	out.Dependencies = append([]Dependency(nil), a.Dependencies...)
	out.Customizations = append([]string(nil), a.Customizations...)
	return &out
}
