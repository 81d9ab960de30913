package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/runtimever"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// Scan reads the critical files of sourceRef, analyzes the project, switches
// the environment to the project's runtime, renders an initial preview and
// plans the upgrade to the configured target.
//
// A scan failure leaves no analysis and no plan behind. When only planning
// fails the analysis is kept and returned together with the plan error.
func (e *Engine) Scan(ctx context.Context, sourceRef, credentials string) (*plan.ProjectAnalysis, error) {
	if err := e.acquire("scan"); err != nil {
		return nil, err
	}
	defer e.op.Unlock()

	if credentials != "" {
		e.SetSourceCredentials(credentials)
	}

	analysis, err := e.scan(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	if _, err := e.planUpgrade(ctx, analysis, e.cfg.TargetVersion); err != nil {
		return analysis.Clone(), err
	}
	return analysis.Clone(), nil
}

func (e *Engine) scan(ctx context.Context, sourceRef string) (*plan.ProjectAnalysis, error) {
	e.update(func() {
		e.phase = PhaseScanning
		e.role = eventlog.RoleScanner
		e.sourceRef = sourceRef
		e.analysis = nil
		e.plan = nil
		e.files = workspace.New(nil)
		e.preview = ""
		e.failedStep = -1
	})
	e.events.Infof(eventlog.RoleScanner, "Initiating full repository scan: %s", sourceRef)

	paths, err := fetch(ctx, e, "list", func(ctx context.Context) ([]string, error) {
		return e.source.ListFiles(ctx, sourceRef)
	})
	if err != nil {
		return nil, e.failScan(errors.Wrap(errors.ErrCodeScanSource, fmt.Sprintf("cannot list files of %s", sourceRef), err))
	}
	if len(paths) == 0 {
		return nil, e.failScan(errors.NewScanEmptyError(sourceRef))
	}
	e.events.Infof(eventlog.RoleScanner, "Found %d source files.", len(paths))

	critical := selectCritical(paths, e.cfg.CriticalFiles, e.cfg.MaxCriticalFiles)
	files := make([]workspace.VirtualFile, 0, len(critical))
	for _, path := range critical {
		content, ok, err := e.fetchFile(ctx, sourceRef, path)
		if err != nil {
			e.metrics.ScanFiles.WithLabelValues("error").Inc()
			return nil, e.failScan(errors.Wrap(errors.ErrCodeScanSource, fmt.Sprintf("cannot fetch %s", path), err))
		}
		if !ok {
			e.metrics.ScanFiles.WithLabelValues("skipped").Inc()
			e.events.Warnf(eventlog.RoleScanner, "Skipping %s: file could not be read.", path)
			continue
		}
		e.metrics.ScanFiles.WithLabelValues("fetched").Inc()
		files = append(files, workspace.VirtualFile{Path: path, Content: content})
	}

	snapshot := workspace.New(files)
	manifest, ok := snapshot.Get(e.cfg.Manifest)
	if !ok {
		return nil, e.failScan(errors.NewManifestMissingError(e.cfg.Manifest))
	}

	analysis, err := consult(ctx, e, oracle.NameAnalysis, eventlog.RoleScanner,
		func(ctx context.Context) (*plan.ProjectAnalysis, error) {
			return e.oracles.Analyzer.Analyze(ctx, oracle.AnalysisRequest{SourceRef: sourceRef, Manifest: manifest})
		})
	if err != nil {
		return nil, e.failScan(errors.Wrap(errors.ErrCodeScanAnalysis, "project analysis failed", err))
	}
	if strings.TrimSpace(analysis.RuntimeVersion) == "" {
		analysis.RuntimeVersion = runtimever.Resolve(analysis.CurrentVersion)
	}
	e.events.Successf(eventlog.RoleScanner, "Analysis complete. %s v%s", e.cfg.Profile.Framework, analysis.CurrentVersion)

	runtime := e.cfg.Profile.Runtime
	e.events.Commandf(eventlog.RoleScanner, "Environment Setup: Switching to %s %s...", runtime, analysis.RuntimeVersion)
	e.update(func() { e.environment = analysis.RuntimeVersion })
	e.events.Successf(eventlog.RoleScanner, "%s %s is now active.", runtime, analysis.RuntimeVersion)

	e.setPhase(PhaseScanning, eventlog.RoleQA)
	e.events.Infof(eventlog.RoleQA, "Compiling source code for initial preview...")
	preview, err := consult(ctx, e, oracle.NamePreview, eventlog.RoleQA,
		func(ctx context.Context) (string, error) {
			return e.oracles.Previewer.Preview(ctx, oracle.PreviewRequest{
				Files:          snapshot.Files(),
				Version:        analysis.CurrentVersion,
				RuntimeVersion: analysis.RuntimeVersion,
			})
		})
	if err != nil {
		return nil, e.failScan(errors.Wrap(errors.ErrCodeScanPreview, "initial preview failed", err))
	}

	e.update(func() {
		e.analysis = analysis
		e.files = snapshot
		e.preview = preview
	})
	return analysis, nil
}

func (e *Engine) fetchFile(ctx context.Context, sourceRef, path string) (string, bool, error) {
	type fetched struct {
		content string
		ok      bool
	}
	f, err := fetch(ctx, e, "fetch", func(ctx context.Context) (fetched, error) {
		content, ok, err := e.source.FetchFile(ctx, sourceRef, path)
		return fetched{content, ok}, err
	})
	return f.content, f.ok, err
}

func (e *Engine) failScan(err error) error {
	e.countError(err, "scan")
	e.events.Errorf(eventlog.RoleScanner, "Error: %s", errors.Summary(err))
	e.setPhase(PhaseIdle, eventlog.RoleIdle)
	return err
}

// selectCritical keeps listed paths that equal or end with one of the
// critical names, in listing order, up to limit.
func selectCritical(paths, critical []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, p := range paths {
		if len(out) == limit {
			break
		}
		for _, name := range critical {
			if p == name || strings.HasSuffix(p, "/"+name) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Plan asks the planning oracle for an upgrade path from analysis to
// targetVersion. Every step starts PENDING with a runtime version.
func (e *Engine) Plan(ctx context.Context, analysis *plan.ProjectAnalysis, targetVersion string) (*plan.UpgradePlan, error) {
	if err := e.acquire("plan"); err != nil {
		return nil, err
	}
	defer e.op.Unlock()

	if analysis == nil {
		return nil, errors.New(errors.ErrCodePlanNotReady, "no project analysis; run a scan first")
	}
	analysis = analysis.Clone()
	e.update(func() { e.analysis = analysis })
	p, err := e.planUpgrade(ctx, analysis, targetVersion)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (e *Engine) planUpgrade(ctx context.Context, analysis *plan.ProjectAnalysis, targetVersion string) (*plan.UpgradePlan, error) {
	e.setPhase(PhasePlanning, eventlog.RoleStrategist)
	e.events.Infof(eventlog.RoleStrategist, "Designing upgrade path: v%s -> v%s", analysis.CurrentVersion, targetVersion)

	p, err := consult(ctx, e, oracle.NamePlanning, eventlog.RoleStrategist,
		func(ctx context.Context) (*plan.UpgradePlan, error) {
			return e.oracles.Planner.Plan(ctx, oracle.PlanRequest{
				CurrentVersion: analysis.CurrentVersion,
				TargetVersion:  targetVersion,
				Dependencies:   oracle.DependencySample(analysis.Dependencies),
				Customizations: analysis.Customizations,
			})
		})
	if err != nil {
		return nil, e.failPlan(errors.Wrap(errors.ErrCodePlanOracle, "upgrade planning failed", err))
	}

	p.Prepare()
	if err := p.Validate(); err != nil {
		return nil, e.failPlan(err)
	}

	e.events.Successf(eventlog.RoleStrategist, "Upgrade plan ready: %d steps.", len(p.Steps))
	for _, step := range p.Steps {
		e.events.Infof(eventlog.RoleStrategist, "Step %d: v%s -> v%s", step.StepID, step.FromVersion, step.ToVersion)
	}

	e.update(func() {
		e.plan = p
		e.failedStep = -1
		e.phase = PhaseReady
		e.role = eventlog.RoleIdle
	})
	return p, nil
}

func (e *Engine) failPlan(err error) error {
	e.countError(err, "plan")
	e.events.Errorf(eventlog.RoleStrategist, "Error: %s", errors.Summary(err))
	e.setPhase(PhaseIdle, eventlog.RoleIdle)
	return err
}
