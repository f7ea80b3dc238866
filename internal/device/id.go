package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

type Kind byte

const (
	KindBlock     Kind = 'b'
	KindChar      Kind = 'c'
	KindNet       Kind = 'n'
	KindSubsystem Kind = '+'
)

var ErrBadID = errors.New("malformed device id")

// ID is parsed form of a device identifier:
// b<major>:<minor>, c<major>:<minor>, n<ifindex> or +<subsystem>:<sysname>.
type ID struct {
	Kind      Kind
	Major     uint32
	Minor     uint32
	IfIndex   int
	Subsystem string
	Sysname   string
}

func ParseID(s string) (ID, error) {
	if len(s) < 2 {
		return ID{}, fmt.Errorf("%w: %q", ErrBadID, s)
	}

	rest := s[1:]
	switch kind := Kind(s[0]); kind {
	case KindBlock, KindChar:
		majorStr, minorStr, ok := strings.Cut(rest, ":")
		if !ok {
			return ID{}, fmt.Errorf("%w: %q: missing minor", ErrBadID, s)
		}

		major, errMajor := strconv.ParseUint(majorStr, 10, 32)
		minor, errMinor := strconv.ParseUint(minorStr, 10, 32)
		if errMajor != nil || errMinor != nil {
			return ID{}, fmt.Errorf("%w: %q: bad device number", ErrBadID, s)
		}

		return ID{Kind: kind, Major: uint32(major), Minor: uint32(minor)}, nil //nolint:exhaustruct // devnum id
	case KindNet:
		ifindex, err := strconv.Atoi(rest)
		if err != nil || ifindex <= 0 {
			return ID{}, fmt.Errorf("%w: %q: bad interface index", ErrBadID, s)
		}

		return ID{Kind: kind, IfIndex: ifindex}, nil //nolint:exhaustruct // ifindex id
	case KindSubsystem:
		subsystem, sysname, ok := strings.Cut(rest, ":")
		if !ok || !isPathElem(subsystem) || !isPathElem(sysname) {
			return ID{}, fmt.Errorf("%w: %q: want +subsystem:sysname", ErrBadID, s)
		}

		return ID{Kind: kind, Subsystem: subsystem, Sysname: sysname}, nil //nolint:exhaustruct // name id
	default:
		return ID{}, fmt.Errorf("%w: %q: unknown kind %q", ErrBadID, s, s[0])
	}
}

// isPathElem reports whether s names exactly one entry of a sysfs directory.
func isPathElem(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.Contains(s, "/")
}

func (id ID) String() string {
	switch id.Kind {
	case KindBlock, KindChar:
		return fmt.Sprintf("%c%d:%d", id.Kind, id.Major, id.Minor)
	case KindNet:
		return fmt.Sprintf("n%d", id.IfIndex)
	case KindSubsystem:
		return "+" + id.Subsystem + ":" + id.Sysname
	default:
		return fmt.Sprintf("invalid(%q)", byte(id.Kind))
	}
}
