// Package pidfile keeps a single daemon per runtime directory: the daemon
// holds an exclusive flock on a file carrying its pid for as long as it
// runs. A second daemon would relocate the live registry under the first.
package pidfile

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("pid file is locked by another process")

// LockFile wraps *os.File and provide functions for locking of files.
type LockFile struct {
	*os.File
}

// Create opens the named file, applies exclusive lock and writes
// current process id to file.
func Create(name string, perm os.FileMode) (*LockFile, error) {
	lock, errOpen := Open(name, perm)
	if errOpen != nil {
		return nil, errOpen
	}

	if errLock := lock.Lock(); errLock != nil {
		// the file belongs to the lock holder, leave it in place
		return nil, errors.Combine(errLock, lock.Close())
	}

	if errWrite := lock.WritePid(); errWrite != nil {
		return nil, errors.Combine(errWrite, lock.Remove())
	}

	return lock, nil
}

// Open opens the named file with flags os.O_RDWR|os.O_CREATE and specified perm.
func Open(name string, perm os.FileMode) (*LockFile, error) {
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}

	return &LockFile{file}, nil
}

// Lock apply exclusive lock on an open file. If file already locked, returns ErrLocked.
func (file *LockFile) Lock() error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec // fd fits into int
		if err == unix.EWOULDBLOCK { //nolint:errorlint // check exactly
			return errors.Wrapf(ErrLocked, "lock %s", file.Name())
		}

		return errors.Wrapf(err, "lock %s", file.Name())
	}

	return nil
}

// Unlock remove exclusive lock on an open file.
func (file *LockFile) Unlock() error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil { //nolint:gosec // fd fits into int
		return errors.Wrapf(err, "unlock %s", file.Name())
	}

	return nil
}

// Read returns pid stored in the named file. Missing file yields an
// error matching fs.ErrNotExist.
func Read(name string) (int, error) {
	file, err := os.Open(name)
	if err != nil {
		return 0, errors.Wrap(err, "open pid file")
	}
	defer file.Close()

	return (&LockFile{file}).ReadPid()
}

// Held reports whether some process holds the lock on the named file.
func Held(name string) (bool, error) {
	file, err := os.Open(name)
	if err != nil {
		if errors.IsNotExist(err) {
			return false, nil
		}

		return false, errors.Wrap(err, "open pid file")
	}
	lock := &LockFile{file}
	defer lock.Close()

	errLock := lock.Lock()
	switch {
	case errLock == nil:
		return false, lock.Unlock()
	case errors.Is(errLock, ErrLocked):
		return true, nil
	default:
		return false, errLock
	}
}

// WritePid writes current process id to an open file.
func (file *LockFile) WritePid() error {
	if _, errSeek := file.Seek(0, io.SeekStart); errSeek != nil {
		return errors.Wrapf(errSeek, "seek %s", file.Name())
	}

	fileLen, errWrite := fmt.Fprint(file, os.Getpid())
	if errWrite != nil {
		return errors.Wrapf(errWrite, "write pid to %s", file.Name())
	}

	if errTruncate := file.Truncate(int64(fileLen)); errTruncate != nil {
		return errors.Wrapf(errTruncate, "truncate %s", file.Name())
	}

	if errSync := file.Sync(); errSync != nil {
		return errors.Wrapf(errSync, "sync %s", file.Name())
	}

	return nil
}

// ReadPid reads process id from file and returns pid.
func (file *LockFile) ReadPid() (int, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, errors.Wrapf(err, "seek %s", file.Name())
	}

	var pid int
	if _, err := fmt.Fscan(file, &pid); err != nil {
		return 0, errors.Wrapf(err, "scan pid from %s", file.Name())
	}

	return pid, nil
}

// Remove removes lock, closes and removes an open file.
func (file *LockFile) Remove() error {
	defer file.Close()

	if err := file.Unlock(); err != nil {
		return err
	}

	if errRm := os.Remove(file.Name()); errRm != nil {
		return errors.Wrapf(errRm, "remove %s", file.Name())
	}

	return nil
}
