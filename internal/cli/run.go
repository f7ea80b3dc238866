package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var _cmdRun = &cobra.Command{
	Use:   "run [device-id]...",
	Short: "restore recorded watches, watch the given devices and report changes",
	Long: `Restore the watches recorded by a previous run, then watch the given
devices (b8:0, c189:1, n2, +net:lo) until interrupted.
Watches begun for the given devices are ended on exit, restored ones stay recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runDaemon(ctx, _cfg, _logger, args)
	},
}
