package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rprtr258/fun"
	"github.com/rprtr258/scuf"
	"github.com/spf13/cobra"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/infra/pidfile"
	"github.com/rprtr258/udevwatch/internal/registry"
)

func printEntries(w io.Writer, entries []registry.Entry) {
	for _, entry := range entries {
		name := fun.IF(entry.WD >= 0, strconv.Itoa(entry.WD), entry.Name)
		if entry.Err != nil {
			fmt.Fprintf(w, "%s -> %s\n", name, scuf.String(entry.Err.Error(), scuf.FgRed))
			continue
		}

		fmt.Fprintf(w, "%s -> %s\n", scuf.String(name, scuf.ModBold), entry.ID)
	}
}

func printDaemon(w io.Writer, filename string) {
	held, err := pidfile.Held(filename)
	switch {
	case err != nil:
		_logger.Warn().Err(err).Str("pidfile", filename).Msg("check daemon")
	case !held:
		fmt.Fprintln(w, scuf.String("daemon is not running", scuf.FgYellow))
	default:
		pid, errRead := pidfile.Read(filename)
		if errRead != nil {
			fmt.Fprintln(w, scuf.String("daemon is running", scuf.FgGreen))
			return
		}
		fmt.Fprintln(w, scuf.String("daemon is running, pid "+strconv.Itoa(pid), scuf.FgGreen))
	}
}

var _cmdList = &cobra.Command{
	Use:     "list",
	Short:   "print recorded watches",
	Aliases: []string{"ls", "l"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		printDaemon(out, _cfg.PidFile())

		entries, err := registry.NewOs(_cfg.RuntimeDir).List()
		if err != nil {
			return errors.Wrap(err, "list registry")
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "no watches recorded")
			return nil
		}

		printEntries(out, entries)
		return nil
	},
}
