package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var out string

	planCmd := &cobra.Command{
		Use:   "plan [repository]",
		Short: "Write the upgrade plan for a repository to a file",
		Long: `Scan the repository and write the upgrade plan as YAML, or JSON when the
output file ends in .json. Without --out the plan is printed as YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts, args, out)
		},
	}

	planCmd.Flags().StringVarP(&out, "out", "o", "", "output plan file (.yaml or .json)")
	return planCmd
}

func runPlan(cmd *cobra.Command, opts *rootOptions, args []string, out string) (err error) {
	a, err := newApp(cmd, opts, args)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), "plan")
	defer span.End()

	if _, err := a.scan(ctx); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	p := a.engine.Snapshot().Plan

	var data []byte
	if strings.EqualFold(filepath.Ext(out), ".json") {
		data, err = json.MarshalIndent(p, "", "  ")
	} else {
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode plan", err)
	}

	if out == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", out), err)
	}
	fmt.Fprintf(a.out, "Plan with %d steps written to %s\n", len(p.Steps), out)
	telemetry.RecordSuccess(span)
	return nil
}
