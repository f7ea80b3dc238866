// Package fsnotify follows changes of the watch registry directory through
// github.com/fsnotify/fsnotify. It is a debugging aid for looking at what
// the daemon records, it does not see device events.
package fsnotify

type ChangeOp int

const (
	EntryAdded ChangeOp = iota + 1
	EntryRemoved
)

func (op ChangeOp) String() string {
	switch op {
	case EntryAdded:
		return "added"
	case EntryRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is a registry entry appearing or going away.
type Change struct {
	Op   ChangeOp
	Name string
	// ID is the link target, empty for removals and unreadable links.
	ID string
	// Err is set when an added entry could not be read, e.g. it is gone
	// already or its target is truncated.
	Err error
}
