package cli

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/rprtr258/udevwatch/internal/config"
	"github.com/rprtr258/udevwatch/internal/device"
	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/infra/pidfile"
	"github.com/rprtr258/udevwatch/internal/inotify"
	"github.com/rprtr258/udevwatch/internal/registry"
	"github.com/rprtr258/udevwatch/internal/watch"
)

// _pollInterval bounds how long shutdown waits for the event loop.
const _pollInterval = 200 * time.Millisecond

func openChannel(logger zerolog.Logger) (*inotify.Channel, error) {
	ch, ok, err := inotify.Inherited()
	if err != nil {
		return nil, errors.Wrap(err, "inherited inotify channel")
	}
	if ok {
		logger.Debug().Int("fd", ch.FD()).Msg("using inherited inotify channel")
		return ch, nil
	}

	return inotify.Init()
}

func runDaemon(ctx context.Context, cfg config.Config, logger zerolog.Logger, ids []string) error {
	if err := os.MkdirAll(cfg.RuntimeDir, 0o755); err != nil {
		return errors.Wrapf(err, "create runtime dir %s", cfg.RuntimeDir)
	}

	lock, err := pidfile.Create(cfg.PidFile(), 0o644)
	if err != nil {
		return errors.Wrap(err, "acquire pid file")
	}
	defer func() {
		if errRm := lock.Remove(); errRm != nil {
			logger.Warn().Err(errRm).Msg("remove pid file")
		}
	}()

	ch, err := openChannel(logger)
	if err != nil {
		return errors.Wrap(err, "open inotify channel")
	}
	defer ch.Close()

	resolver := device.NewSysfsResolver(afero.NewOsFs(), cfg.SysDir, cfg.DevDir)
	w := watch.New(ch, registry.NewOs(cfg.RuntimeDir), resolver, logger)

	stats, errRestore := w.RestoreWithStats()
	switch {
	case errRestore == nil:
	case errors.Is(errRestore, watch.ErrRestoreIncomplete):
		logger.Warn().Err(errRestore).Msg("restore incomplete")
	default:
		return errors.Wrap(errRestore, "restore watches")
	}
	logger.Info().
		Int("restored", stats.Restored).
		Int("discarded", stats.Discarded).
		Int("failed", stats.Failed).
		Msg("watches restored")

	var begun []device.Device
	defer func() {
		for _, dev := range begun {
			if errEnd := w.End(dev); errEnd != nil {
				logger.Warn().Err(errEnd).Msg("end watch")
			}
		}
	}()

	for _, id := range ids {
		dev, errResolve := resolver.FromDeviceID(id)
		if errResolve != nil {
			return errors.Wrapf(errResolve, "resolve device %s", id)
		}

		if errBegin := w.Begin(dev); errBegin != nil {
			return errors.Wrapf(errBegin, "watch device %s", id)
		}
		begun = append(begun, dev)
	}

	buf := make([]byte, 16*inotify.MinBufferSize)
	for ctx.Err() == nil {
		ready, errWait := ch.Wait(_pollInterval)
		if errWait != nil {
			return errWait
		}
		if !ready {
			continue
		}

		events, errRead := ch.ReadEvents(buf)
		for _, ev := range events {
			reportEvent(w, logger, ev)
		}
		if errRead != nil {
			return errRead
		}
	}

	logger.Debug().Msg("shutting down")
	return nil
}

func reportEvent(w *watch.Watcher, logger zerolog.Logger, ev inotify.Event) {
	if ev.IsIgnored() {
		logger.Debug().Int("wd", ev.WD).Msg("watch dropped by kernel")
		return
	}

	found, err := w.Lookup(ev.WD)
	if err != nil {
		logger.Warn().Err(err).Int("wd", ev.WD).Msg("lookup watch")
		return
	}

	dev, ok := found.Unpack()
	if !ok {
		logger.Debug().Int("wd", ev.WD).Msg("event for unrecorded watch")
		return
	}

	devnode, _ := dev.DevName()
	id, _ := dev.IDFilename()
	logger.Info().
		Int("wd", ev.WD).
		Str("devnode", devnode).
		Str("id", id).
		Msg("device node written")
}
