package plan

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/runtimever"
)

// Validate checks the plan is a usable upgrade chain: at least one step,
// strictly increasing step IDs, valid statuses and each step starting where
// the previous one ended.
func (p *UpgradePlan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New(errors.ErrCodePlanInvalid, "plan has no steps").
			WithSuggestion("Check the target version is newer than the current version")
	}

	for i, s := range p.Steps {
		if err := s.Status.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodePlanInvalid, fmt.Sprintf("step[%d]", i), err)
		}
		if strings.TrimSpace(s.FromVersion) == "" || strings.TrimSpace(s.ToVersion) == "" {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("step[%d]: fromVersion and toVersion are required", i))
		}
		if i == 0 {
			continue
		}
		prev := p.Steps[i-1]
		if s.StepID <= prev.StepID {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("step[%d]: stepId %d does not follow %d", i, s.StepID, prev.StepID))
		}
		if !SameVersion(prev.ToVersion, s.FromVersion) {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("step[%d]: starts at %s but step[%d] ends at %s", i, s.FromVersion, i-1, prev.ToVersion))
		}
	}

	if active := p.countActive(); active > 1 {
		return errors.New(errors.ErrCodePlanInvalid,
			fmt.Sprintf("%d steps are active, at most one allowed", active))
	}

	return nil
}

// Prepare resets a freshly planned chain: every step PENDING, no recorded
// changes, and a runtime version filled in for steps that lack one.
func (p *UpgradePlan) Prepare() {
	for i := range p.Steps {
		s := &p.Steps[i]
		s.Status = StatusPending
		s.FileChanges = nil
		if strings.TrimSpace(s.RuntimeVersionRequired) == "" {
			s.RuntimeVersionRequired = runtimever.Resolve(s.ToVersion)
		}
	}
}

// SameVersion compares two version strings, treating "14" and "14.0.0" as equal.
func SameVersion(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return false
	}
	return va.Equal(vb)
}

func (p *UpgradePlan) countActive() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status.IsActive() {
			n++
		}
	}
	return n
}
