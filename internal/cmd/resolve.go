package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hopper/internal/runtimever"
)

func newResolveCmd() *cobra.Command {
	var table bool

	resolveCmd := &cobra.Command{
		Use:   "resolve [version...]",
		Short: "Show the runtime version required by framework versions",
		Long: `Print the Node.js version hopper switches to for each framework version.
With --table the full band table is printed.`,
		Example: `  hopper resolve 13.2.0 16
  hopper resolve --table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if table || len(args) == 0 {
				bands := runtimever.Bands()
				for _, band := range bands {
					fmt.Fprintf(out, "<= v%d -> %s\n", band.MaxMajor, band.Runtime)
				}
				fmt.Fprintf(out, ">  v%d -> %s\n", bands[len(bands)-1].MaxMajor, runtimever.NewestRuntime)
				fmt.Fprintf(out, "unparseable -> %s\n", runtimever.DefaultRuntime)
				if len(args) == 0 {
					return nil
				}
			}
			for _, v := range args {
				fmt.Fprintf(out, "%s -> %s\n", v, runtimever.Resolve(v))
			}
			return nil
		},
	}

	resolveCmd.Flags().BoolVar(&table, "table", false, "print the full version band table")
	return resolveCmd
}
