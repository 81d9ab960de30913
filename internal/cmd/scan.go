package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
	"github.com/felixgeelhaar/hopper/internal/tui"
)

// scanResult is the machine-readable output of scan and plan.
type scanResult struct {
	SourceRef   string                `json:"sourceRef" yaml:"sourceRef"`
	Environment string                `json:"environment" yaml:"environment"`
	Analysis    *plan.ProjectAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Plan        *plan.UpgradePlan     `json:"plan,omitempty" yaml:"plan,omitempty"`
	Files       []string              `json:"files" yaml:"files"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var format string

	scanCmd := &cobra.Command{
		Use:   "scan [repository]",
		Short: "Analyze a repository and propose an upgrade plan",
		Long: `Fetch the critical files of a repository, analyze the project with the
analysis oracle and build an upgrade plan to the target version. No files
are changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args, format)
		},
	}

	scanCmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	return scanCmd
}

func runScan(cmd *cobra.Command, opts *rootOptions, args []string, format string) (err error) {
	if err := checkFormat(format); err != nil {
		return err
	}
	a, err := newApp(cmd, opts, args)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), "scan")
	defer span.End()

	analysis, err := a.scan(ctx)
	state := a.engine.Snapshot()
	if analysis != nil {
		result := scanResult{
			SourceRef:   state.SourceRef,
			Environment: state.Environment,
			Analysis:    state.Analysis,
			Plan:        state.Plan,
			Files:       make([]string, 0, len(state.Files)),
		}
		for _, f := range state.Files {
			result.Files = append(result.Files, f.Path)
		}
		if writeErr := writeResult(a.out, format, result); writeErr != nil {
			return writeErr
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown output format %q", format)).
		WithSuggestion("Use text, json or yaml")
}

func writeResult(w io.Writer, format string, result scanResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode scan result", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode scan result", err)
		}
		return enc.Close()
	default:
		fmt.Fprintln(w, tui.RenderAnalysis(result.Analysis))
		fmt.Fprintf(w, "Files scanned: %d   Runtime: %s\n\n", len(result.Files), result.Environment)
		fmt.Fprintln(w, tui.RenderPlan(result.Plan))
	}
	return nil
}
