// Package oracle defines the four decision services an upgrade run consults
// and the response contracts every implementation must satisfy.
package oracle

import (
	"context"

	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// Names used in logs, metrics and spans.
const (
	NameAnalysis       = "analysis"
	NamePlanning       = "planning"
	NameTransformation = "transformation"
	NamePreview        = "preview"
)

const (
	// MaxPreviewFiles bounds the files sent to the preview oracle.
	MaxPreviewFiles = 15
	// MaxDependencySample bounds the dependencies sent to the planning oracle.
	MaxDependencySample = 5
)

// AnalysisRequest is the input of the analysis oracle.
type AnalysisRequest struct {
	SourceRef string
	Manifest  string
}

// PlanRequest is the input of the planning oracle.
type PlanRequest struct {
	CurrentVersion string
	TargetVersion  string
	Dependencies   []plan.Dependency
	Customizations []string
}

// TransformRequest is the input of the transformation oracle.
type TransformRequest struct {
	Path        string
	Content     string
	FromVersion string
	ToVersion   string
}

// PreviewRequest is the input of the preview oracle.
type PreviewRequest struct {
	Files          []workspace.VirtualFile
	Version        string
	RuntimeVersion string
}

// Analyzer reads the project manifest and reports what the project is.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*plan.ProjectAnalysis, error)
}

// Planner turns an analysis and a target into an ordered chain of steps.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*plan.UpgradePlan, error)
}

// Transformer rewrites a single file for one version hop. Returning the
// input content unchanged means no edit was needed.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (string, error)
}

// Previewer renders a simulated build of a bounded set of files.
type Previewer interface {
	Preview(ctx context.Context, req PreviewRequest) (string, error)
}

// Oracles bundles the four services an engine needs.
type Oracles struct {
	Analyzer    Analyzer
	Planner     Planner
	Transformer Transformer
	Previewer   Previewer
}

// All returns an Oracles using o for every role.
func All(o interface {
	Analyzer
	Planner
	Transformer
	Previewer
}) Oracles {
	return Oracles{Analyzer: o, Planner: o, Transformer: o, Previewer: o}
}

// Complete reports whether every role is filled.
func (o Oracles) Complete() bool {
	return o.Analyzer != nil && o.Planner != nil && o.Transformer != nil && o.Previewer != nil
}

// DependencySample returns at most MaxDependencySample dependencies.
func DependencySample(deps []plan.Dependency) []plan.Dependency {
	if len(deps) > MaxDependencySample {
		deps = deps[:MaxDependencySample]
	}
	return append([]plan.Dependency(nil), deps...)
}

// PreviewFiles returns at most MaxPreviewFiles files.
func PreviewFiles(files []workspace.VirtualFile) []workspace.VirtualFile {
	if len(files) > MaxPreviewFiles {
		files = files[:MaxPreviewFiles]
	}
	return append([]workspace.VirtualFile(nil), files...)
}
