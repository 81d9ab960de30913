package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hopper/internal/config"
	"github.com/felixgeelhaar/hopper/internal/errors"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or create hopper configuration",
		Long: `Manage hopper configuration stored at ~/.hopper/config.yaml.

Every key can be overridden with a HOPPER_ environment variable, e.g.
HOPPER_ENGINE_TARGET_VERSION=17.0.0. The oracle API key is read from
HOPPER_API_KEY (or GEMINI_API_KEY) and the GitHub token from
HOPPER_GITHUB_TOKEN (or GITHUB_TOKEN); neither is ever written to disk.`,
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Display the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(cmd, opts)
			},
		},
		newConfigInitCmd(opts),
		&cobra.Command{
			Use:   "path",
			Short: "Show configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := configPath(opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return configCmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(opts)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("configuration already exists at %s", path)).
					WithSuggestion("Pass --force to overwrite it")
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return initCmd
}

func configPath(opts *rootOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode configuration", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	fmt.Fprintf(out, "# oracle api key: %s\n", presence(cfg.Oracle.APIKey))
	fmt.Fprintf(out, "# github token: %s\n", presence(cfg.Source.Token))
	return nil
}

func presence(secret string) string {
	if secret == "" {
		return "not set"
	}
	return "set"
}
