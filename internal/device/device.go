// Package device declares what the watch code needs from a device object and
// provides a sysfs-backed implementation for the udevwatch daemon.
package device

import (
	"github.com/rprtr258/fun"
)

// Device is the part of a device object the watch core talks to.
type Device interface {
	// DevName returns the device node path, e.g. /dev/sda.
	DevName() (string, error)
	// IDFilename returns the stable identifier stored in the watch registry.
	IDFilename() (string, error)
	// WatchHandle returns the handle of the active watch, if any.
	WatchHandle() fun.Option[int]
	SetWatchHandle(fun.Option[int])
}

// Resolver turns a registry identifier back into a device.
type Resolver interface {
	FromDeviceID(id string) (Device, error)
}
