package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rprtr258/scuf"
	"github.com/spf13/cobra"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/infra/fsnotify"
	"github.com/rprtr258/udevwatch/internal/registry"
)

var _cmdMonitor = &cobra.Command{
	Use:   "monitor",
	Short: "follow watches being recorded and dropped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m, err := fsnotify.NewMonitor(registry.NewOs(_cfg.RuntimeDir), _logger)
		if err != nil {
			return errors.Wrap(err, "monitor registry")
		}
		defer m.Close()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case change, ok := <-m.Changes:
				if !ok {
					return nil
				}

				switch change.Op {
				case fsnotify.EntryAdded:
					if change.Err != nil {
						fmt.Fprintf(out, "%s %s -> %s\n", scuf.String("+", scuf.FgGreen), change.Name, scuf.String(change.Err.Error(), scuf.FgRed))
						continue
					}
					fmt.Fprintf(out, "%s %s -> %s\n", scuf.String("+", scuf.FgGreen), change.Name, change.ID)
				case fsnotify.EntryRemoved:
					fmt.Fprintf(out, "%s %s\n", scuf.String("-", scuf.FgRed), change.Name)
				}
			case errWatch := <-m.Errors:
				_logger.Warn().Err(errWatch).Msg("registry monitor")
			}
		}
	},
}
