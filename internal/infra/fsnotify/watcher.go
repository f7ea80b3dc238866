package fsnotify

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/registry"
)

// Monitor watches the runtime directory to notice the registry directory
// coming and going, and the registry directory itself for entries.
type Monitor struct {
	// rootDir is the runtime directory holding the registry directory.
	rootDir string

	// regDir is the registry directory inside rootDir.
	regDir string

	// reg reads added entries.
	reg *registry.Registry

	// w is the underlying fsnotify watcher used for watching.
	w *fsnotify.Watcher

	logger zerolog.Logger

	// Changes carries registry entry changes.
	Changes chan Change

	// Errors is proxy for Errors passed from fsnotify
	Errors chan error

	// closing is closed by Close so pending sends do not block shutdown
	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error

	// doneClose indicates that we are done handling the close from the
	// underlying fsnotify
	doneClose chan struct{}
}

// NewMonitor creates a monitor for the directory of reg. Its parent must
// exist, the directory itself may appear later.
func NewMonitor(reg *registry.Registry, logger zerolog.Logger) (*Monitor, error) {
	regDir := reg.Dir()
	rootDir := filepath.Dir(regDir)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	res := &Monitor{
		rootDir:   rootDir,
		regDir:    regDir,
		reg:       reg,
		w:         w,
		logger:    logger,
		Changes:   make(chan Change),
		Errors:    make(chan error),
		closing:   make(chan struct{}),
		doneClose: make(chan struct{}),
	}

	if err := res.w.Add(rootDir); err != nil {
		// Best-efforts close of underlying fsnotify
		res.w.Close()
		return nil, errors.Wrapf(err, "watch %s", rootDir)
	}

	// Missing registry dir is fine, its creation is seen on rootDir.
	_ = res.addRegDir()

	go res.runEventLoop()

	return res, nil
}

// Close shuts down the monitor, by removing all watches and closing the
// Changes channel. Later calls return the result of the first one.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		close(m.closing)
		if err := m.w.Close(); err != nil {
			m.closeErr = errors.Wrap(err, "shutdown underlying fsnotify watcher")
			return
		}
		<-m.doneClose
	})
	return m.closeErr
}

func (m *Monitor) addRegDir() error {
	if err := m.w.Add(m.regDir); err != nil {
		return err
	}

	m.logger.Debug().Str("dir", m.regDir).Msg("registry directory watched")
	return nil
}

func (m *Monitor) runEventLoop() {
	defer close(m.doneClose)
	errs := m.w.Errors
	for {
		select {
		case ev, ok := <-m.w.Events:
			if !ok {
				close(m.Changes)
				return
			}

			m.logger.Debug().
				Str("path", ev.Name).
				Stringer("op", ev.Op).
				Msg("fsnotify event")

			if change, ok := m.handleEvent(ev); ok {
				select {
				case m.Changes <- change:
				case <-m.closing:
				}
			}
		case err, ok := <-errs:
			if !ok {
				// nil channel is never selected
				errs = nil
				continue
			}
			select {
			case m.Errors <- err:
			case <-m.closing:
			}
		}
	}
}

// handleEvent keeps the registry directory watched across restore
// renames and turns entry events into changes.
func (m *Monitor) handleEvent(ev fsnotify.Event) (Change, bool) {
	if ev.Name == m.regDir {
		switch {
		case ev.Has(fsnotify.Create):
			_ = m.addRegDir()
		case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
			_ = m.w.Remove(m.regDir)
		}
		return Change{}, false
	}

	if filepath.Dir(ev.Name) != m.regDir {
		return Change{}, false
	}

	name := filepath.Base(ev.Name)
	switch {
	case ev.Has(fsnotify.Create):
		id, err := m.reg.ReadName(name)
		return Change{Op: EntryAdded, Name: name, ID: id, Err: err}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Change{Op: EntryRemoved, Name: name, ID: "", Err: nil}, true
	default:
		return Change{}, false
	}
}
