// Package inotify owns the process-wide inotify instance that device watches
// are registered on.
//
// The descriptor is created without close-on-exec, so helper processes
// spawned by the daemon keep it and can add watches on the same instance.
// Only one Channel should be created per process; everything else receives
// it explicitly.
package inotify

import (
	"os"
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

// EnvFD names the environment variable carrying the inherited descriptor
// number into child processes.
const EnvFD = "UDEVWATCH_INOTIFY_FD"

// Mask is the event set every device watch is registered with.
const Mask = unix.IN_CLOSE_WRITE

var ErrInvalidChannel = errors.New("invalid inotify descriptor")

// ErrNotInotify is returned by Inherited for a descriptor that is open but
// is not an inotify instance.
var ErrNotInotify = errors.New("descriptor is not an inotify instance")

// _anonInotify is what /proc/self/fd/N links to for an inotify instance.
const _anonInotify = "anon_inode:inotify"

type Channel struct {
	fd int
	// file keeps the descriptor reachable for exec.Cmd.ExtraFiles; dropping
	// it would let the finalizer close fd.
	file *os.File
}

// Init creates a new inotify instance with close-on-exec disabled.
func Init() (*Channel, error) {
	fd, err := unix.InotifyInit1(0)
	if err != nil {
		return nil, errors.Wrap(err, "create inotify descriptor")
	}

	return newChannel(fd), nil
}

// Inherited adopts the descriptor passed by a parent through Attach.
// ok is false when the process was not given one.
func Inherited() (ch *Channel, ok bool, err error) {
	value, ok := os.LookupEnv(EnvFD)
	if !ok {
		return nil, false, nil
	}

	fd, errParse := strconv.Atoi(value)
	if errParse != nil || fd < 0 {
		return nil, false, errors.Newf("invalid %s=%q", EnvFD, value)
	}

	if _, errFcntl := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); errFcntl != nil {
		return nil, false, errors.Wrapf(errFcntl, "inherited inotify descriptor %d", fd)
	}

	target, errLink := os.Readlink("/proc/self/fd/" + strconv.Itoa(fd))
	if errLink != nil {
		return nil, false, errors.Wrapf(errLink, "inherited inotify descriptor %d", fd)
	}
	if target != _anonInotify {
		return nil, false, errors.Wrapf(ErrNotInotify, "inherited descriptor %d is %s", fd, target)
	}

	return newChannel(fd), true, nil
}

func newChannel(fd int) *Channel {
	return &Channel{
		fd:   fd,
		file: os.NewFile(uintptr(fd), "inotify"),
	}
}

// FD returns the descriptor, -1 if the channel is not initialized.
func (c *Channel) FD() int {
	if c == nil {
		return -1
	}

	return c.fd
}

func (c *Channel) Valid() bool {
	return c.FD() >= 0
}

// AddWatch registers a write-close watch on path and returns its handle.
func (c *Channel) AddWatch(path string) (int, error) {
	if !c.Valid() {
		return -1, ErrInvalidChannel
	}

	wd, err := unix.InotifyAddWatch(c.fd, path, Mask)
	if err != nil {
		return -1, &os.PathError{Op: "inotify_add_watch", Path: path, Err: err}
	}

	return wd, nil
}

func (c *Channel) RemoveWatch(wd int) error {
	if !c.Valid() {
		return ErrInvalidChannel
	}

	if _, err := unix.InotifyRmWatch(c.fd, uint32(wd)); err != nil { //nolint:gosec // wd comes from the kernel
		return errors.Wrapf(err, "inotify_rm_watch %d", wd)
	}

	return nil
}

// Close releases the descriptor. Watches registered by children through an
// inherited copy stay alive until the children exit.
func (c *Channel) Close() error {
	if !c.Valid() {
		return ErrInvalidChannel
	}

	err := c.file.Close()
	c.fd = -1
	c.file = nil
	return err
}

type Event struct {
	WD     int
	Mask   uint32
	Cookie uint32
	Name   string
}

func (e Event) IsCloseWrite() bool {
	return e.Mask&unix.IN_CLOSE_WRITE != 0
}

// IsIgnored reports the kernel dropped the watch, either by RemoveWatch or
// because the watched node went away.
func (e Event) IsIgnored() bool {
	return e.Mask&unix.IN_IGNORED != 0
}

// MinBufferSize fits at least one event with the longest possible name.
const MinBufferSize = unix.SizeofInotifyEvent + unix.NAME_MAX + 1

// ReadEvents blocks until the kernel has at least one event queued and
// returns every event that fitted into buf.
func (c *Channel) ReadEvents(buf []byte) ([]Event, error) {
	if !c.Valid() {
		return nil, ErrInvalidChannel
	}

	if len(buf) < MinBufferSize {
		return nil, errors.Newf("buffer of %d bytes is smaller than %d", len(buf), MinBufferSize)
	}

	var (
		n   int
		err error
	)
	for {
		n, err = unix.Read(c.fd, buf)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "read inotify events")
	}

	return parseEvents(buf[:n])
}

// Wait blocks until events are queued or timeout passes. It reports
// whether a following ReadEvents will not block.
func (c *Channel) Wait(timeout time.Duration) (bool, error) {
	if !c.Valid() {
		return false, ErrInvalidChannel
	}

	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}} //nolint:gosec // fds fit into int32
	for {
		n, err := unix.Poll(fds, int(timeout.Milliseconds()))
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return false, errors.Wrap(err, "poll inotify channel")
		default:
			return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
		}
	}
}

func parseEvents(buf []byte) ([]Event, error) {
	var events []Event
	for offset := 0; offset < len(buf); {
		if len(buf)-offset < unix.SizeofInotifyEvent {
			return events, errors.Newf("short inotify event at offset %d", offset)
		}

		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset])) //nolint:gosec // layout fixed by the kernel
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buf) {
			return events, errors.Newf("inotify event name overruns buffer at offset %d", offset)
		}

		name := buf[nameStart:nameEnd]
		for len(name) > 0 && name[len(name)-1] == 0 {
			name = name[:len(name)-1]
		}

		events = append(events, Event{
			WD:     int(raw.Wd),
			Mask:   raw.Mask,
			Cookie: raw.Cookie,
			Name:   string(name),
		})
		offset = nameEnd
	}

	return events, nil
}
