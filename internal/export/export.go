// Package export writes the migrated snapshot of a run to disk, either as a
// directory tree or a zip archive, together with a report.yaml describing
// the plan, step outcomes and per-file digests.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/engine"
	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/patch"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/version"
)

// ReportFile is the name of the report inside every export.
const ReportFile = "report.yaml"

// Report summarizes a run for reviewers.
type Report struct {
	ExportID       string       `yaml:"exportId"`
	Generator      string       `yaml:"generator"`
	GeneratedAt    time.Time    `yaml:"generatedAt"`
	SourceRef      string       `yaml:"sourceRef"`
	Phase          string       `yaml:"phase"`
	CurrentVersion string       `yaml:"currentVersion,omitempty"`
	Environment    string       `yaml:"environment,omitempty"`
	RiskLevel      string       `yaml:"riskLevel,omitempty"`
	Steps          []StepReport `yaml:"steps"`
	Files          []FileEntry  `yaml:"files"`
}

// StepReport is the outcome of one plan step.
type StepReport struct {
	StepID      int         `yaml:"stepId"`
	FromVersion string      `yaml:"fromVersion"`
	ToVersion   string      `yaml:"toVersion"`
	Runtime     string      `yaml:"runtime"`
	Status      plan.Status `yaml:"status"`
	Stats       patch.Stats `yaml:"stats"`
	Diff        string      `yaml:"diff,omitempty"`
}

// FileEntry records an exported file and its blake3 digest.
type FileEntry struct {
	Path   string `yaml:"path"`
	Size   int    `yaml:"size"`
	Digest string `yaml:"digest"`
}

// Digest returns the hex blake3-256 digest of content.
func Digest(content string) string {
	sum := blake3.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:])
}

// BuildReport derives a report from a run state.
func BuildReport(state engine.RunState, now time.Time) *Report {
	r := &Report{
		ExportID:    uuid.NewString(),
		Generator:   version.GetInfo().UserAgent(),
		GeneratedAt: now.UTC(),
		SourceRef:   state.SourceRef,
		Phase:       string(state.Phase),
		Environment: state.Environment,
		Steps:       []StepReport{},
		Files:       make([]FileEntry, 0, len(state.Files)),
	}
	if state.Analysis != nil {
		r.CurrentVersion = state.Analysis.CurrentVersion
	}
	if state.Plan != nil {
		r.RiskLevel = string(state.Plan.RiskLevel)
		for _, step := range state.Plan.Steps {
			sr := StepReport{
				StepID:      step.StepID,
				FromVersion: step.FromVersion,
				ToVersion:   step.ToVersion,
				Runtime:     step.RuntimeVersionRequired,
				Status:      step.Status,
			}
			var diff strings.Builder
			for _, fd := range step.FileChanges {
				s := patch.CountChanges(fd)
				sr.Stats.FilesChanged++
				sr.Stats.Insertions += s.Insertions
				sr.Stats.Deletions += s.Deletions
				diff.WriteString(patch.Unified(fd))
			}
			sr.Diff = diff.String()
			r.Steps = append(r.Steps, sr)
		}
	}
	for _, f := range state.Files {
		r.Files = append(r.Files, FileEntry{Path: f.Path, Size: len(f.Content), Digest: Digest(f.Content)})
	}
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Path < r.Files[j].Path })
	return r
}

// Write exports state to dest. A dest ending in .zip produces an archive;
// anything else is treated as a directory.
func Write(dest string, state engine.RunState, now time.Time) (*Report, error) {
	if state.Plan == nil && len(state.Files) == 0 {
		return nil, errors.New(errors.ErrCodePlanNotReady, "nothing to export: no repository has been scanned").
			WithSuggestion("Run 'hopper run' or 'hopper scan' first")
	}
	if err := checkPaths(state); err != nil {
		return nil, err
	}

	report := BuildReport(state, now)
	reportData, err := yaml.Marshal(report)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode report", err)
	}

	if strings.EqualFold(filepath.Ext(dest), ".zip") {
		err = writeZipFile(dest, state, reportData)
	} else {
		err = writeDir(dest, state, reportData)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// checkPaths rejects file paths that would escape the export root.
func checkPaths(state engine.RunState) error {
	for _, f := range state.Files {
		if !filepath.IsLocal(filepath.FromSlash(f.Path)) || f.Path == ReportFile {
			return errors.New(errors.ErrCodeFileWriteFailed, fmt.Sprintf("refusing to export unsafe path %q", f.Path))
		}
	}
	return nil
}

func writeDir(dir string, state engine.RunState, reportData []byte) error {
	for _, f := range state.Files {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to create directory for %s", f.Path), err)
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", f.Path), err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create export directory", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportFile), reportData, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write report", err)
	}
	return nil
}

func writeZipFile(dest string, state engine.RunState, reportData []byte) (err error) {
	if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create export directory", mkErr)
	}
	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to create %s", dest), err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to close archive", closeErr)
		}
	}()
	return WriteZip(out, state, reportData)
}

// WriteZip writes the snapshot files and report into a zip archive on w.
func WriteZip(w io.Writer, state engine.RunState, reportData []byte) error {
	zw := zip.NewWriter(w)
	add := func(name string, data []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}

	for _, f := range state.Files {
		if err := add(path.Clean(f.Path), []byte(f.Content)); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to archive %s", f.Path), err)
		}
	}
	if err := add(ReportFile, reportData); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to archive report", err)
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to finish archive", err)
	}
	return nil
}
