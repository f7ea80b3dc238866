package watch

import (
	"fmt"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/inotify"
	"github.com/rprtr258/udevwatch/internal/registry"
)

var (
	ErrInvalidChannel = inotify.ErrInvalidChannel
	ErrInvalidHandle  = registry.ErrInvalidHandle
	ErrTruncated      = registry.ErrTruncated
	// ErrRestoreIncomplete is returned when the old registry could be moved
	// aside but not read, so none of its watches were re-armed.
	ErrRestoreIncomplete = errors.New("old watches will not be restored")
)

// DeviceError reports a device attribute the watch needs but could not get.
type DeviceError struct {
	Attr string
	Err  error
}

func (err DeviceError) Error() string {
	return fmt.Sprintf("get device %s: %s", err.Attr, err.Err.Error())
}

func (err DeviceError) Unwrap() error { return err.Err }

type AddWatchError struct {
	DevName string
	Err     error
}

func (err AddWatchError) Error() string {
	return fmt.Sprintf("add device %q to watch: %s", err.DevName, err.Err.Error())
}

func (err AddWatchError) Unwrap() error { return err.Err }

type ResolveError struct {
	ID  string
	Err error
}

func (err ResolveError) Error() string {
	return fmt.Sprintf("create device object for %q: %s", err.ID, err.Err.Error())
}

func (err ResolveError) Unwrap() error { return err.Err }
