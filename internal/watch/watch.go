// Package watch keeps inotify watches on device nodes and their on-disk
// record in sync.
//
// Begin registers a write-close watch and records it in the registry, End
// drops both, Lookup maps a watch handle from an inotify event back to the
// device. Restore re-arms the watches recorded by a previous run.
//
// None of the operations lock. Calls for the same device must be serialized
// by the caller.
package watch

import (
	"github.com/rprtr258/fun"
	"github.com/rs/zerolog"

	"github.com/rprtr258/udevwatch/internal/device"
	"github.com/rprtr258/udevwatch/internal/inotify"
	"github.com/rprtr258/udevwatch/internal/registry"
)

type Watcher struct {
	channel  *inotify.Channel
	registry *registry.Registry
	resolver device.Resolver
	logger   zerolog.Logger
}

func New(
	channel *inotify.Channel,
	registry *registry.Registry,
	resolver device.Resolver,
	logger zerolog.Logger,
) *Watcher {
	return &Watcher{
		channel:  channel,
		registry: registry,
		resolver: resolver,
		logger:   logger,
	}
}

// Begin watches dev's node for write-close and records the watch.
//
// The kernel watch is not removed when recording fails: dev keeps the
// handle, so End still cleans it up, but Restore in a later run can not
// know about it.
func (w *Watcher) Begin(dev device.Device) error {
	if !w.channel.Valid() {
		return ErrInvalidChannel
	}

	devnode, err := dev.DevName()
	if err != nil {
		return DeviceError{Attr: "name", Err: err}
	}

	id, err := dev.IDFilename()
	if err != nil {
		return DeviceError{Attr: "id-filename", Err: err}
	}

	w.logger.Debug().Str("devnode", devnode).Msg("adding watch")
	wd, err := w.channel.AddWatch(devnode)
	if err != nil {
		return AddWatchError{DevName: devnode, Err: err}
	}

	dev.SetWatchHandle(fun.Valid(wd))

	if err := w.registry.Write(wd, id); err != nil {
		return err
	}

	return nil
}

// End removes the watch on dev. A device that is not watched is fine.
// The handle is cleared even if the kernel or the registry no longer knew
// about the watch.
func (w *Watcher) End(dev device.Device) error {
	if !w.channel.Valid() {
		return ErrInvalidChannel
	}

	wd, ok := dev.WatchHandle().Unpack()
	if !ok {
		return nil
	}
	defer dev.SetWatchHandle(fun.Invalid[int]())

	devnode, _ := dev.DevName()
	w.logger.Debug().Str("devnode", devnode).Int("wd", wd).Msg("removing watch")

	_ = w.channel.RemoveWatch(wd)
	_ = w.registry.Remove(wd)

	return nil
}

// Lookup finds the device watched by wd. Handles without a registry entry,
// e.g. of a watch being torn down right now, give an empty result.
func (w *Watcher) Lookup(wd int) (fun.Option[device.Device], error) {
	if !w.channel.Valid() {
		return fun.Invalid[device.Device](), ErrInvalidChannel
	}

	if wd < 0 {
		return fun.Invalid[device.Device](), ErrInvalidHandle
	}

	id, err := w.registry.Read(wd)
	if err != nil {
		return fun.Invalid[device.Device](), err
	}

	deviceID, ok := id.Unpack()
	if !ok {
		return fun.Invalid[device.Device](), nil
	}

	dev, err := w.resolver.FromDeviceID(deviceID)
	if err != nil {
		return fun.Invalid[device.Device](), ResolveError{ID: deviceID, Err: err}
	}

	return fun.Valid(dev), nil
}
