package registry

import (
	"fmt"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

var (
	ErrInvalidHandle = errors.New("invalid watch handle")
	// ErrTruncated marks an entry whose target is empty or does not fit
	// PathMax.
	ErrTruncated = errors.New("link target is truncated")
)

type MkdirError struct {
	Path string
	Err  error
}

func (err MkdirError) Error() string {
	return fmt.Sprintf("create parent directory of %q: %s", err.Path, err.Err.Error())
}

func (err MkdirError) Unwrap() error { return err.Err }

type SymlinkError struct {
	Path   string
	Target string
	Err    error
}

func (err SymlinkError) Error() string {
	return fmt.Sprintf("create symlink %s -> %s: %s", err.Path, err.Target, err.Err.Error())
}

func (err SymlinkError) Unwrap() error { return err.Err }

type TruncatedError struct {
	Path string
	Len  int
}

func (err TruncatedError) Error() string {
	return fmt.Sprintf("path specified by link %q is truncated (%d bytes)", err.Path, err.Len)
}

func (TruncatedError) Unwrap() error { return ErrTruncated }
