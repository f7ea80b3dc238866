// Package cli is the udevwatch command line.
package cli

import (
	"cmp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rprtr258/udevwatch/internal/config"
	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/infra/log"
)

// Filled by the root command before any subcommand runs.
var (
	_cfg    config.Config
	_logger = zerolog.Nop()
)

func addGroup(
	cmd *cobra.Command,
	title string,
	cmds ...*cobra.Command,
) {
	id := strings.ToLower(title)
	cmd.AddGroup(&cobra.Group{
		ID:    id,
		Title: title + ":",
	})
	for _, c := range cmds {
		cmd.AddCommand(c)
		c.GroupID = id
	}
}

var _app = func() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:           "udevwatch",
		Short:         "keep inotify watches on device nodes across restarts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			filename := cmp.Or(configPath, config.Locate())
			cfg, err := config.Read(afero.NewOsFs(), filename)
			if err != nil {
				return errors.Wrap(err, "load config")
			}

			_cfg = cfg
			_logger = log.New(cfg.Debug || debug)
			_logger.Debug().
				Str("config", filename).
				Str("runtime_dir", cfg.RuntimeDir).
				Msg("config loaded")
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "config file to use")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug messages")
	cmd.AddCommand(_cmdVersion)
	addGroup(cmd, "Daemon",
		_cmdRun,
	)
	addGroup(cmd, "Inspection",
		_cmdList,
		_cmdMonitor,
	)
	return cmd
}()

func Run(argv []string) error {
	_app.SetArgs(argv[1:])
	return _app.Execute()
}
