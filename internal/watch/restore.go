package watch

import (
	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

type RestoreStats struct {
	// Restored counts re-armed watches.
	Restored int
	// Discarded counts entries that could not be read or resolved.
	Discarded int
	// Failed counts resolved devices Begin did not re-arm, usually because
	// the node is gone.
	Failed int
}

// Restore moves the registry of a previous run out of the way and re-arms a
// watch for every entry in it. It must run once, after the channel is
// created and before any other watch is added.
func (w *Watcher) Restore() error {
	_, err := w.RestoreWithStats()
	return err
}

// RestoreWithStats is Restore that also reports what happened to the old
// entries. Broken entries are logged and dropped, they never stop the rest
// of the restore.
func (w *Watcher) RestoreWithStats() (RestoreStats, error) {
	var stats RestoreStats

	if !w.channel.Valid() {
		return stats, ErrInvalidChannel
	}

	moved, err := w.registry.Relocate()
	if err != nil {
		w.logger.Error().Err(err).Msg("old watches will not be restored")
		return stats, err
	}
	if !moved {
		return stats, nil
	}

	oldDir := w.registry.OldDir()
	names, err := w.registry.OldEntries()
	if err != nil {
		w.logger.Error().Err(err).Str("dir", oldDir).Msg("failed to open old watches directory, old watches will not be restored")
		// leaving it would make the next Relocate fail
		if errDiscard := w.registry.DiscardOld(); errDiscard != nil {
			w.logger.Error().Err(errDiscard).Str("dir", oldDir).Msg("failed to remove old watches directory")
		}
		return stats, errors.Combine(ErrRestoreIncomplete, err)
	}

	for _, name := range names {
		w.restoreEntry(name, &stats)
		_ = w.registry.RemoveOld(name)
	}

	_ = w.registry.RemoveOldDir()

	w.logger.Debug().
		Int("restored", stats.Restored).
		Int("discarded", stats.Discarded).
		Int("failed", stats.Failed).
		Msg("old watches restored")
	return stats, nil
}

func (w *Watcher) restoreEntry(name string, stats *RestoreStats) {
	logger := w.logger.With().Str("entry", name).Logger()

	id, err := w.registry.ReadOld(name)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read old watch link, ignoring")
		stats.Discarded++
		return
	}

	dev, err := w.resolver.FromDeviceID(id)
	if err != nil {
		logger.Error().Err(err).Str("target", id).Msg("failed to create device object, ignoring")
		stats.Discarded++
		return
	}

	devnode, _ := dev.DevName()
	logger.Debug().Str("devnode", devnode).Msg("restoring old watch")
	if err := w.Begin(dev); err != nil {
		logger.Debug().Err(err).Str("devnode", devnode).Msg("old watch not restored")
		stats.Failed++
		return
	}

	stats.Restored++
}
