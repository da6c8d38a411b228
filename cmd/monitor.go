package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/signalnine/benchtrack/internal/config"
	"github.com/signalnine/benchtrack/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	var flagNoColor bool
	cmd := &cobra.Command{
		Use:   "monitor [state_dir] [refresh_interval] [auto_detect]",
		Short: "Follow a benchmark run's progress",
		Long: "Poll a benchmark run's state file and display live progress and statistics.\n" +
			"Pass \"none\" as state_dir (or omit it) to auto-detect the newest run under\n" +
			"the configured results directory. The monitor never writes to tracked state.",
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			opts := monitor.Options{
				Root:       cfg.Results.Dir,
				AutoDetect: cfg.AutoDetectEnabled(),
				Interval:   time.Duration(cfg.Monitor.RefreshIntervalS) * time.Second,
			}
			if len(args) > 0 && !strings.EqualFold(args[0], "none") && args[0] != "" {
				opts.StateDir = args[0]
			}
			if len(args) > 1 {
				secs, err := strconv.Atoi(args[1])
				if err != nil || secs < 1 {
					return fmt.Errorf("invalid refresh interval %q", args[1])
				}
				opts.Interval = time.Duration(secs) * time.Second
			}
			if len(args) > 2 {
				opts.AutoDetect = parseBool(args[2])
			}

			tty := isatty.IsTerminal(os.Stdout.Fd())
			opts.Color = tty && !flagNoColor && os.Getenv("NO_COLOR") == ""
			opts.ClearScreen = tty

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Interrupt cancels ctx and Run returns nil: exit 0. Only a hard
			// "nothing to monitor" condition propagates as an error.
			if err := monitor.New(opts).Run(ctx); err != nil {
				return err
			}
			fmt.Println("\nMonitoring stopped.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagNoColor, "no-color", false, "disable styled output")
	return cmd
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
