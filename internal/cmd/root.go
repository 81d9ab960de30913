package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command. Each
// root command owns its own copy so commands can be built and executed
// repeatedly without global state.
type rootOptions struct {
	configPath  string
	logLevel    string
	demo        bool
	source      string
	oracle      string
	target      string
	token       string
	metricsAddr string
	trace       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "hopper",
		Short: "Human-gated framework upgrade orchestrator",
		Long: `hopper walks a web application through a framework upgrade one major
version at a time. It scans the repository, asks an oracle for an upgrade
plan, rewrites files step by step and stops after every step until a human
confirms the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.hopper/config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&opts.demo, "demo", false, "use the bundled legacy app and the offline oracle")
	pf.StringVar(&opts.source, "source", "", "source provider: github, git or demo")
	pf.StringVar(&opts.oracle, "oracle", "", "oracle provider: gemini or offline")
	pf.StringVar(&opts.target, "target", "", "target framework version (e.g. 16.0.0)")
	pf.StringVar(&opts.token, "github-token", "", "GitHub token for private repositories and higher rate limits")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	pf.BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newScanCmd(opts),
		newPlanCmd(opts),
		newResolveCmd(),
		newPromptsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
