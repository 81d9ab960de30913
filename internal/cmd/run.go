package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hopper/internal/engine"
	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/export"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
	"github.com/felixgeelhaar/hopper/internal/tui"
)

type runOptions struct {
	yes    bool
	export string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run [repository]",
		Short: "Scan, plan and migrate a repository step by step",
		Long: `Scan the repository, build an upgrade plan and execute it one step at a
time. After each step the changed files and the preview are shown and the
run waits for confirmation before the next step starts.

The repository is a GitHub URL or owner/name, a local path with --source git,
or omitted with --demo.`,
		Example: `  hopper run --demo --yes
  hopper run https://github.com/acme/storefront --target 16.0.0
  hopper run ./storefront --source git --export migrated.zip`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, ro, args)
		},
	}

	runCmd.Flags().BoolVarP(&ro.yes, "yes", "y", false, "confirm every step without prompting")
	runCmd.Flags().StringVarP(&ro.export, "export", "o", "", "write the migrated files to a directory or .zip archive when the run ends")
	return runCmd
}

func runMigration(cmd *cobra.Command, opts *rootOptions, ro *runOptions, args []string) (err error) {
	a, err := newApp(cmd, opts, args)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), "run")
	defer span.End()

	interactive := !ro.yes && tui.ShouldPrompt()
	if !ro.yes && !interactive {
		return errors.New(errors.ErrCodeConfigInvalid, "step confirmation needs an interactive terminal").
			WithSuggestion("Pass --yes to confirm every step automatically")
	}

	analysis, err := a.scan(ctx)
	if analysis != nil {
		fmt.Fprintln(a.out, tui.RenderAnalysis(analysis))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	state := a.engine.Snapshot()
	fmt.Fprintln(a.out, tui.RenderPlan(state.Plan))
	if state.Plan == nil || len(state.Plan.Steps) == 0 {
		fmt.Fprintln(a.out, "Nothing to upgrade.")
		return nil
	}

	if interactive {
		start, promptErr := tui.PromptForConfirmation("Start the migration?", true)
		if promptErr != nil {
			return promptErr
		}
		if !start {
			return nil
		}
	}

	err = a.migrate(ctx, ro.yes, interactive)
	a.flushLogs()

	final := a.engine.Snapshot()
	fmt.Fprintln(a.out, tui.RenderPlan(final.Plan))
	if final.Phase == engine.PhaseComplete {
		fmt.Fprintf(a.out, "Migration complete. Runtime: %s %s\n", a.cfg.Oracle.Profile.Runtime, final.Environment)
	}

	if ro.export != "" {
		report, exportErr := export.Write(ro.export, final, time.Now())
		if exportErr != nil {
			return stderrors.Join(err, exportErr)
		}
		fmt.Fprintf(a.out, "Exported %d files to %s\n", len(report.Files), ro.export)
	}

	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// migrate drives the engine from the first pending step to completion,
// stopping at every confirmation gate unless autoConfirm is set.
func (a *app) migrate(ctx context.Context, autoConfirm, interactive bool) error {
	err := a.engine.StartMigration(ctx)
	for {
		a.flushLogs()
		if err != nil {
			if !interactive || !stderrors.Is(err, errors.ErrStepExecution) {
				return err
			}
			retry, promptErr := tui.PromptForConfirmation(errors.Summary(err)+"\nRetry the step?", true)
			if promptErr != nil || !retry {
				if failed := a.engine.Snapshot().FailedStep; failed >= 0 {
					a.abandonStep(failed, "abandoned by operator")
				}
				return err
			}
			err = a.engine.StartMigration(ctx)
			continue
		}

		state := a.engine.Snapshot()
		if state.Phase != engine.PhaseAwaitingConfirmation || state.Plan == nil {
			return nil
		}
		index, ok := state.Plan.Active()
		if !ok {
			return nil
		}

		if !autoConfirm {
			result, reviewErr := tui.RunStepReview(state.Plan.Steps[index], state.Preview, tea.WithOutput(a.out))
			if reviewErr != nil {
				return reviewErr
			}
			if result.Decision != tui.DecisionConfirm {
				fmt.Fprintf(a.out, "Paused at step %d; it stays waiting for confirmation.\n", state.Plan.Steps[index].StepID)
				return nil
			}
		}
		err = a.engine.ConfirmStep(ctx, index)
	}
}

// abandonStep marks the step at index FAILED. The step error is what the
// caller reports, so a failure here is only logged.
func (a *app) abandonStep(index int, reason string) {
	if err := a.engine.FailStep(index, reason); err != nil {
		a.logger.WithError(err).Error("could not mark step failed", "step_index", index)
	}
}
