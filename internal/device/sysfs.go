package device

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rprtr258/fun"
	"github.com/spf13/afero"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

var ErrNoDevName = errors.New("device has no device node")

// Sysfs is a device read from its sysfs uevent file.
type Sysfs struct {
	Subsystem string
	Sysname   string
	Syspath   string
	// Uevent holds KEY=VALUE pairs of the uevent file.
	Uevent map[string]string

	devRoot string
	watch   fun.Option[int]
}

var _ Device = (*Sysfs)(nil)

// ErrDevNameOutside is returned for a DEVNAME that leaves the /dev root.
var ErrDevNameOutside = errors.New("device node outside of device root")

func (d *Sysfs) DevName() (string, error) {
	name, ok := d.Uevent["DEVNAME"]
	if !ok || name == "" {
		return "", errors.Wrapf(ErrNoDevName, "device %s", d.Syspath)
	}

	devnode := name
	if !filepath.IsAbs(devnode) {
		devnode = filepath.Join(d.devRoot, devnode)
	}

	rel, err := filepath.Rel(d.devRoot, filepath.Clean(devnode))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.Wrapf(ErrDevNameOutside, "device %s: DEVNAME=%s", d.Syspath, name)
	}

	return devnode, nil
}

// IDFilename computes the identifier the same way for every lookup path:
// device number if there is one, interface index for network interfaces,
// subsystem and sysname otherwise.
func (d *Sysfs) IDFilename() (string, error) {
	majorStr, hasMajor := d.Uevent["MAJOR"]
	minorStr, hasMinor := d.Uevent["MINOR"]
	if hasMajor && hasMinor {
		major, errMajor := strconv.ParseUint(majorStr, 10, 32)
		minor, errMinor := strconv.ParseUint(minorStr, 10, 32)
		if errMajor != nil || errMinor != nil {
			return "", errors.Newf("device %s: bad device number %s:%s", d.Syspath, majorStr, minorStr)
		}

		if major != 0 {
			kind := KindChar
			if d.Subsystem == "block" {
				kind = KindBlock
			}
			return ID{Kind: kind, Major: uint32(major), Minor: uint32(minor)}.String(), nil //nolint:exhaustruct // devnum id
		}
	}

	if ifindexStr, ok := d.Uevent["IFINDEX"]; ok {
		ifindex, err := strconv.Atoi(ifindexStr)
		if err == nil && ifindex > 0 {
			return ID{Kind: KindNet, IfIndex: ifindex}.String(), nil //nolint:exhaustruct // ifindex id
		}
	}

	if d.Subsystem == "" || d.Sysname == "" {
		return "", errors.Newf("device %s: no subsystem or sysname", d.Syspath)
	}

	return ID{Kind: KindSubsystem, Subsystem: d.Subsystem, Sysname: d.Sysname}.String(), nil //nolint:exhaustruct // name id
}

func (d *Sysfs) WatchHandle() fun.Option[int] {
	return d.watch
}

func (d *Sysfs) SetWatchHandle(wd fun.Option[int]) {
	d.watch = wd
}

// SysfsResolver finds devices under sysRoot (normally /sys) and places
// their nodes under devRoot (normally /dev).
type SysfsResolver struct {
	fs      afero.Fs
	sysRoot string
	devRoot string
}

var _ Resolver = (*SysfsResolver)(nil)

func NewSysfsResolver(fs afero.Fs, sysRoot, devRoot string) *SysfsResolver {
	return &SysfsResolver{
		fs:      fs,
		sysRoot: sysRoot,
		devRoot: devRoot,
	}
}

func (r *SysfsResolver) FromDeviceID(s string) (Device, error) {
	id, err := ParseID(s)
	if err != nil {
		return nil, err
	}

	switch id.Kind {
	case KindBlock, KindChar:
		class := fun.IF(id.Kind == KindBlock, "block", "char")
		syspath := filepath.Join(r.sysRoot, "dev", class, strconv.FormatUint(uint64(id.Major), 10)+":"+strconv.FormatUint(uint64(id.Minor), 10))
		return r.load(syspath, fun.IF(id.Kind == KindBlock, "block", ""), "")
	case KindNet:
		return r.fromIfIndex(id.IfIndex)
	case KindSubsystem:
		for _, syspath := range []string{
			filepath.Join(r.sysRoot, "class", id.Subsystem, id.Sysname),
			filepath.Join(r.sysRoot, "bus", id.Subsystem, "devices", id.Sysname),
		} {
			dev, errLoad := r.load(syspath, id.Subsystem, id.Sysname)
			if errLoad == nil {
				return dev, nil
			}
			if !errors.IsNotExist(errLoad) {
				return nil, errLoad
			}
		}

		return nil, errors.Wrapf(errNotFound, "device %s", s)
	default:
		return nil, errors.Wrapf(ErrBadID, "%q", s)
	}
}

var errNotFound = errors.New("not found in sysfs")

func (r *SysfsResolver) fromIfIndex(ifindex int) (Device, error) {
	classDir := filepath.Join(r.sysRoot, "class", "net")
	names, err := afero.ReadDir(r.fs, classDir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", classDir)
	}

	want := strconv.Itoa(ifindex)
	for _, info := range names {
		syspath := filepath.Join(classDir, info.Name())
		content, errRead := afero.ReadFile(r.fs, filepath.Join(syspath, "ifindex"))
		if errRead != nil || strings.TrimSpace(string(content)) != want {
			continue
		}

		return r.load(syspath, "net", info.Name())
	}

	return nil, errors.Wrapf(errNotFound, "network interface with index %d", ifindex)
}

func (r *SysfsResolver) load(syspath, subsystem, sysname string) (*Sysfs, error) {
	content, err := afero.ReadFile(r.fs, filepath.Join(syspath, "uevent"))
	if err != nil {
		return nil, errors.Wrapf(err, "read uevent of %s", syspath)
	}

	uevent := parseUevent(content)
	if subsystem == "" {
		subsystem = r.readlinkBase(filepath.Join(syspath, "subsystem"))
	}
	if sysname == "" {
		sysname = r.sysname(syspath, uevent)
	}

	return &Sysfs{
		Subsystem: subsystem,
		Sysname:   sysname,
		Syspath:   syspath,
		Uevent:    uevent,
		devRoot:   r.devRoot,
		watch:     fun.Invalid[int](),
	}, nil
}

func (r *SysfsResolver) readlinkBase(path string) string {
	reader, ok := r.fs.(afero.LinkReader)
	if !ok {
		return ""
	}

	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return ""
	}

	return filepath.Base(target)
}

// sysname prefers the name the /sys/dev link points to, then the node name.
func (r *SysfsResolver) sysname(syspath string, uevent map[string]string) string {
	if name := r.readlinkBase(syspath); name != "" {
		return name
	}

	if name, ok := uevent["DEVNAME"]; ok {
		return filepath.Base(name)
	}

	return filepath.Base(syspath)
}

func parseUevent(content []byte) map[string]string {
	res := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || key == "" {
			continue
		}
		res[key] = value
	}

	return res
}
