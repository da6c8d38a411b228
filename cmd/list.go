package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/benchtrack/internal/config"
	"github.com/signalnine/benchtrack/internal/scan"
	"github.com/signalnine/benchtrack/internal/store"
	"github.com/signalnine/benchtrack/internal/tracker"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [root]",
		Short: "List discovered benchmark runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			root := cfg.Results.Dir
			if len(args) > 0 {
				root = args[0]
			}

			names, err := scan.Candidates(root)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", root, err)
			}
			if len(names) == 0 {
				fmt.Printf("No benchmark runs under %s\n", root)
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIRECTORY\tRUN ID\tSTATE\tPROGRESS\tPASS RATE")
			// Newest first.
			for i := len(names) - 1; i >= 0; i-- {
				dir := filepath.Join(root, names[i])
				run, err := store.Open(scan.StateDir(dir)).LoadLatest()
				if err != nil {
					fmt.Fprintf(tw, "%s\t-\t(no readable state)\t-\t-\n", names[i])
					continue
				}
				stats := tracker.Compute(run)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.1f%%\n",
					names[i], run.RunID, run.State, stats.Completed, run.TotalExercises, stats.PassRate)
			}
			return tw.Flush()
		},
	}
}
