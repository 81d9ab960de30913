package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/engine"
	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/patch"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

var exportTime = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func completedRun() engine.RunState {
	manifestChange, _ := patch.Record("package.json",
		"{\n  \"@angular/core\": \"~13.0.0\"\n}\n",
		"{\n  \"@angular/core\": \"~14.0.0\"\n}\n")
	return engine.RunState{
		Phase:       engine.PhaseComplete,
		SourceRef:   "demo://legacy-angular-app",
		Environment: "16.13.0",
		Analysis:    &plan.ProjectAnalysis{CurrentVersion: "13.0.0", RuntimeVersion: "16.10.0"},
		Plan: &plan.UpgradePlan{
			RiskLevel: plan.RiskLow,
			Steps: []plan.Step{{
				StepID:                 1,
				FromVersion:            "13",
				ToVersion:              "14",
				RuntimeVersionRequired: "16.13.0",
				Status:                 plan.StatusSuccess,
				FileChanges:            []patch.FileDiff{manifestChange},
			}},
		},
		Files: []workspace.VirtualFile{
			{Path: "src/main.ts", Content: "bootstrap();\n"},
			{Path: "package.json", Content: "{\n  \"@angular/core\": \"~14.0.0\"\n}\n"},
		},
		FailedStep: -1,
	}
}

func TestDigest(t *testing.T) {
	// blake3 of the empty input
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", Digest(""))
	assert.Len(t, Digest("hello"), 64)
	assert.NotEqual(t, Digest("a"), Digest("b"))
}

func TestBuildReport(t *testing.T) {
	r := BuildReport(completedRun(), exportTime)

	assert.NotEmpty(t, r.ExportID)
	assert.Equal(t, exportTime, r.GeneratedAt)
	assert.Equal(t, "COMPLETE", r.Phase)
	assert.Equal(t, "13.0.0", r.CurrentVersion)
	assert.Equal(t, "Low", r.RiskLevel)

	require.Len(t, r.Steps, 1)
	step := r.Steps[0]
	assert.Equal(t, plan.StatusSuccess, step.Status)
	assert.Equal(t, patch.Stats{FilesChanged: 1, Insertions: 1, Deletions: 1}, step.Stats)
	assert.Contains(t, step.Diff, "--- a/package.json")
	assert.Contains(t, step.Diff, "+  \"@angular/core\": \"~14.0.0\"")

	require.Len(t, r.Files, 2)
	assert.Equal(t, "package.json", r.Files[0].Path, "files are sorted")
	assert.Equal(t, Digest("bootstrap();\n"), r.Files[1].Digest)
	assert.Equal(t, len("bootstrap();\n"), r.Files[1].Size)
}

func TestWriteDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	report, err := Write(dir, completedRun(), exportTime)
	require.NoError(t, err)

	main, err := os.ReadFile(filepath.Join(dir, "src", "main.ts"))
	require.NoError(t, err)
	assert.Equal(t, "bootstrap();\n", string(main))

	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, report.ExportID, decoded.ExportID)
	assert.Equal(t, report.Files, decoded.Files)
}

func TestWriteZip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "migration.zip")

	_, err := Write(dest, completedRun(), exportTime)
	require.NoError(t, err)

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(data)
	}

	assert.Len(t, contents, 3)
	assert.Equal(t, "bootstrap();\n", contents["src/main.ts"])
	assert.Contains(t, contents[ReportFile], "sourceRef: demo://legacy-angular-app")
}

func TestWriteRejects(t *testing.T) {
	_, err := Write(t.TempDir(), engine.RunState{FailedStep: -1}, exportTime)
	assert.ErrorIs(t, err, errors.ErrPlan)

	state := completedRun()
	state.Files = append(state.Files, workspace.VirtualFile{Path: "../escape.ts", Content: "x"})
	_, err = Write(t.TempDir(), state, exportTime)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrCodeFileWriteFailed, code)
}
