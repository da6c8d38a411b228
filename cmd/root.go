package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "benchtrack",
		Short: "State tracking and monitoring for coding benchmark runs",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "benchtrack.yaml", "config file path")
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newModelsCmd())
	return root
}
