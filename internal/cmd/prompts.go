package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hopper/internal/errors"
)

func newPromptsCmd(opts *rootOptions) *cobra.Command {
	var out string

	promptsCmd := &cobra.Command{
		Use:   "prompts",
		Short: "Print the oracle prompt templates as markdown",
		Long: `Render every oracle prompt with placeholder inputs, for review or for
running the upgrade with another assistant.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			doc, err := cfg.Oracle.Profile.PromptsDocument()
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), doc)
				return nil
			}
			if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", out), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Prompts written to %s\n", out)
			return nil
		},
	}

	promptsCmd.Flags().StringVarP(&out, "out", "o", "", "write the document to a file")
	return promptsCmd
}
