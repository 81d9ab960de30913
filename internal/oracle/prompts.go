package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// Profile names the framework and runtime the prompts talk about.
type Profile struct {
	Framework   string `mapstructure:"framework" yaml:"framework"`
	CorePackage string `mapstructure:"core_package" yaml:"core_package"`
	Runtime     string `mapstructure:"runtime" yaml:"runtime"`
}

// DefaultProfile targets Angular projects running on Node.js.
func DefaultProfile() Profile {
	return Profile{
		Framework:   "Angular",
		CorePackage: "@angular/core",
		Runtime:     "Node.js",
	}
}

var templates = template.Must(template.New("prompts").Parse(`
{{define "scanner"}}You are an expert {{.Profile.Framework}} Repository Scanner.
Analyze the following manifest content from the repository {{.SourceRef}}.

CRITICAL:
1. Look specifically for the "{{.Profile.CorePackage}}" version.
2. Extract the numeric version as currentVersion.
3. Infer the {{.Profile.Runtime}} version based on the {{.Profile.Framework}} version found and return it as runtimeVersion.
4. Categorize dependencies, marking development dependencies with isDev.
5. Rate the upgrade complexity from 1 to 10 as complexityScore.

File Content:
{{.Manifest}}
{{end}}

{{define "strategist"}}You are a Senior {{.Profile.Framework}} Architect.
Current {{.Profile.Framework}} Version: {{.CurrentVersion}}
Target {{.Profile.Framework}} Version: {{.TargetVersion}}
Current Dependencies: {{.Dependencies}}
Customizations: {{.Customizations}}

Create a precise, step-by-step upgrade plan, one major version per step.
Each step's fromVersion must equal the previous step's toVersion.
Each step must specify the required {{.Profile.Runtime}} version as runtimeVersionRequired.
Number steps with increasing stepId starting at 1.
Set riskLevel to one of Low, Medium or High.
{{end}}

{{define "executor"}}Upgrade the following {{.Profile.Framework}} file "{{.Path}}" from v{{.FromVersion}} to v{{.ToVersion}}.
Apply the syntax and APIs introduced by the target version where they replace deprecated ones.
If no change is needed, return the file unchanged.
RETURN ONLY THE NEW CODE. NO MARKDOWN.

File Content:
{{.Content}}
{{end}}

{{define "simulator"}}Act as a {{.Profile.Framework}} Runtime Simulator serving the application below.
Return ONLY the raw HTML body content.
{{.Profile.Framework}}: {{.Version}}, {{.Profile.Runtime}}: {{.RuntimeVersion}}

Files:
{{range .Files}}--- {{.Path}} ---
{{.Content}}

{{end}}{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ScannerPrompt builds the analysis prompt.
func (p Profile) ScannerPrompt(req AnalysisRequest) (string, error) {
	return render("scanner", struct {
		Profile Profile
		AnalysisRequest
	}{p, req})
}

// StrategistPrompt builds the planning prompt. Dependencies are sampled.
func (p Profile) StrategistPrompt(req PlanRequest) (string, error) {
	deps, err := json.Marshal(DependencySample(req.Dependencies))
	if err != nil {
		return "", err
	}
	return render("strategist", struct {
		Profile        Profile
		CurrentVersion string
		TargetVersion  string
		Dependencies   string
		Customizations string
	}{p, req.CurrentVersion, req.TargetVersion, string(deps), strings.Join(req.Customizations, ", ")})
}

// ExecutorPrompt builds the transformation prompt.
func (p Profile) ExecutorPrompt(req TransformRequest) (string, error) {
	return render("executor", struct {
		Profile Profile
		TransformRequest
	}{p, req})
}

// SimulatorPrompt builds the preview prompt. Files are capped.
func (p Profile) SimulatorPrompt(req PreviewRequest) (string, error) {
	return render("simulator", struct {
		Profile        Profile
		Version        string
		RuntimeVersion string
		Files          []workspace.VirtualFile
	}{p, req.Version, req.RuntimeVersion, PreviewFiles(req.Files)})
}

// PromptsDocument renders every prompt with placeholder inputs as a
// markdown reference for operators.
func (p Profile) PromptsDocument() (string, error) {
	placeholderFiles := []workspace.VirtualFile{{Path: "<path>", Content: "<content>"}}

	sections := []struct {
		title string
		build func() (string, error)
	}{
		{"Scanner (analysis oracle)", func() (string, error) {
			return p.ScannerPrompt(AnalysisRequest{SourceRef: "<sourceRef>", Manifest: "<manifest>"})
		}},
		{"Strategist (planning oracle)", func() (string, error) {
			return p.StrategistPrompt(PlanRequest{
				CurrentVersion: "<currentVersion>",
				TargetVersion:  "<targetVersion>",
				Dependencies:   []plan.Dependency{{Name: "<name>", CurrentVersion: "<version>"}},
				Customizations: []string{"<customization>"},
			})
		}},
		{"Executor (transformation oracle)", func() (string, error) {
			return p.ExecutorPrompt(TransformRequest{
				Path: "<path>", Content: "<content>", FromVersion: "<from>", ToVersion: "<to>",
			})
		}},
		{"Simulator (preview oracle)", func() (string, error) {
			return p.SimulatorPrompt(PreviewRequest{
				Files: placeholderFiles, Version: "<version>", RuntimeVersion: "<runtimeVersion>",
			})
		}},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# hopper - %s upgrade prompts\n", p.Framework)
	for _, s := range sections {
		text, err := s.build()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n## %s\n\n```text\n%s\n```\n", s.title, text)
	}
	return b.String(), nil
}
