package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/runtimever"
)

// Offline is a deterministic rule-based oracle. It reads package.json style
// manifests, plans one step per major version and only rewrites framework
// version ranges in the manifest. It never calls out of process.
type Offline struct {
	profile Profile
}

// NewOffline creates an offline oracle for profile.
func NewOffline(profile Profile) *Offline {
	return &Offline{profile: profile}
}

type manifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Analyze implements Analyzer.
func (o *Offline) Analyze(_ context.Context, req AnalysisRequest) (*plan.ProjectAnalysis, error) {
	var m manifest
	if err := json.Unmarshal([]byte(req.Manifest), &m); err != nil {
		return nil, retry.Fatal(errors.NewMalformedResponseError(NameAnalysis, fmt.Errorf("manifest is not JSON: %w", err)))
	}

	core, ok := m.Dependencies[o.profile.CorePackage]
	if !ok {
		core, ok = m.DevDependencies[o.profile.CorePackage]
	}
	if !ok {
		return nil, retry.Fatal(errors.New(errors.ErrCodeScanAnalysis,
			fmt.Sprintf("%s is not a dependency of %s", o.profile.CorePackage, req.SourceRef)))
	}
	current := strings.TrimLeft(core, "^~=v ")

	deps := make([]plan.Dependency, 0, len(m.Dependencies)+len(m.DevDependencies))
	for name, version := range m.Dependencies {
		deps = append(deps, plan.Dependency{Name: name, CurrentVersion: version})
	}
	for name, version := range m.DevDependencies {
		deps = append(deps, plan.Dependency{Name: name, CurrentVersion: version, IsDev: true})
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].IsDev != deps[j].IsDev {
			return !deps[i].IsDev
		}
		return deps[i].Name < deps[j].Name
	})

	customizations := make([]string, 0, len(m.Scripts))
	for name, script := range m.Scripts {
		customizations = append(customizations, fmt.Sprintf("script %s: %s", name, script))
	}
	sort.Strings(customizations)

	score := 1 + float64(len(deps))/3
	if score > 10 {
		score = 10
	}

	return &plan.ProjectAnalysis{
		CurrentVersion:  current,
		RuntimeVersion:  runtimever.Resolve(current),
		Dependencies:    deps,
		Customizations:  customizations,
		ComplexityScore: float64(int(score*10)) / 10,
	}, nil
}

// Plan implements Planner.
func (o *Offline) Plan(_ context.Context, req PlanRequest) (*plan.UpgradePlan, error) {
	from, ok := runtimever.Major(req.CurrentVersion)
	if !ok {
		return nil, retry.Fatal(fmt.Errorf("unparseable current version %q", req.CurrentVersion))
	}
	to, ok := runtimever.Major(req.TargetVersion)
	if !ok {
		return nil, retry.Fatal(fmt.Errorf("unparseable target version %q", req.TargetVersion))
	}

	p := &plan.UpgradePlan{}
	for major := from; major < to; major++ {
		p.Steps = append(p.Steps, plan.Step{
			StepID:      len(p.Steps) + 1,
			FromVersion: fmt.Sprint(major),
			ToVersion:   fmt.Sprint(major + 1),
			Description: fmt.Sprintf("Upgrade %s from v%d to v%d", o.profile.Framework, major, major+1),
			Commands: []string{
				fmt.Sprintf("npm install %s@^%d.0.0", o.profile.CorePackage, major+1),
			},
			BreakingChanges: []string{},
		})
	}

	switch n := len(p.Steps); {
	case n <= 1:
		p.RiskLevel = plan.RiskLow
	case n <= 3:
		p.RiskLevel = plan.RiskMedium
	default:
		p.RiskLevel = plan.RiskHigh
	}
	p.EstimatedDuration = fmt.Sprintf("%d hours", 2*len(p.Steps))
	p.Prepare()
	return p, nil
}

// Transform implements Transformer. Only the manifest is rewritten: every
// dependency in the framework's package scope pinned to FromVersion moves to
// ToVersion.
func (o *Offline) Transform(_ context.Context, req TransformRequest) (string, error) {
	if req.Path != "package.json" {
		return req.Content, nil
	}
	from, okFrom := runtimever.Major(req.FromVersion)
	to, okTo := runtimever.Major(req.ToVersion)
	if !okFrom || !okTo {
		return req.Content, nil
	}

	scope := o.profile.CorePackage
	if i := strings.LastIndex(scope, "/"); i >= 0 {
		scope = scope[:i+1]
	}
	pattern := regexp.MustCompile(fmt.Sprintf(`("%s[^"]*"\s*:\s*"[~^]?)%d(\.[0-9]+)*"`, regexp.QuoteMeta(scope), from))
	return pattern.ReplaceAllString(req.Content, fmt.Sprintf(`${1}%d.0.0"`, to)), nil
}

// Preview implements Previewer.
func (o *Offline) Preview(_ context.Context, req PreviewRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(fmt.Sprintf("Welcome to %s %s", o.profile.Framework, req.Version)))
	fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(fmt.Sprintf("Served with %s %s", o.profile.Runtime, req.RuntimeVersion)))
	b.WriteString("<ul>\n")
	for _, f := range PreviewFiles(req.Files) {
		fmt.Fprintf(&b, "  <li>%s</li>\n", html.EscapeString(f.Path))
	}
	b.WriteString("</ul>")
	return b.String(), nil
}
