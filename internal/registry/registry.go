// Package registry persists the mapping from inotify watch handle to device
// identifier, one symlink per watch:
//
//	<root>/watch/<wd> -> <device id>
//
// The layout matches what earlier daemon runs left behind, so a restarted
// daemon can re-arm its watches from it.
package registry

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rprtr258/fun"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/rprtr258/udevwatch/internal/infra/errors"
)

const (
	DefaultRoot = "/run/udev"

	dirWatch    = "watch"
	dirWatchOld = "watch.old"

	// PathMax bounds link targets. A longer target is treated as corrupted.
	PathMax = unix.PathMax
)

type Registry struct {
	fs   afero.Fs
	root string
}

func New(fs afero.Fs, root string) *Registry {
	return &Registry{
		fs:   fs,
		root: root,
	}
}

// NewOs returns registry on the real filesystem.
func NewOs(root string) *Registry {
	return New(afero.NewOsFs(), root)
}

func (r *Registry) Dir() string {
	return filepath.Join(r.root, dirWatch)
}

func (r *Registry) OldDir() string {
	return filepath.Join(r.root, dirWatchOld)
}

// Path is where the entry for watch handle wd lives.
func (r *Registry) Path(wd int) string {
	return filepath.Join(r.Dir(), strconv.Itoa(wd))
}

func (r *Registry) symlinker() (afero.Symlinker, error) {
	linker, ok := r.fs.(afero.Symlinker)
	if !ok {
		return nil, afero.ErrNoSymlink
	}

	return linker, nil
}

// Write records wd -> id, replacing whatever was at that path.
func (r *Registry) Write(wd int, id string) error {
	linker, err := r.symlinker()
	if err != nil {
		return err
	}

	filename := r.Path(wd)
	if errMkdir := r.fs.MkdirAll(filepath.Dir(filename), 0o755); errMkdir != nil {
		return MkdirError{Path: filename, Err: errMkdir}
	}

	_ = r.fs.Remove(filename)

	if errLink := linker.SymlinkIfPossible(id, filename); errLink != nil {
		return SymlinkError{Path: filename, Target: id, Err: errLink}
	}

	return nil
}

// Read returns the device id recorded for wd. A missing entry is not an
// error, the option is just empty.
func (r *Registry) Read(wd int) (fun.Option[string], error) {
	if wd < 0 {
		return fun.Invalid[string](), ErrInvalidHandle
	}

	target, err := r.readLink(r.Path(wd))
	if err != nil {
		if errors.IsNotExist(err) {
			return fun.Invalid[string](), nil
		}

		return fun.Invalid[string](), err
	}

	return fun.Valid(target), nil
}

func (r *Registry) readLink(filename string) (string, error) {
	linker, err := r.symlinker()
	if err != nil {
		return "", err
	}

	target, err := linker.ReadlinkIfPossible(filename)
	if err != nil {
		return "", errors.Wrapf(err, "read link %q", filename)
	}

	if target == "" || len(target) >= PathMax {
		return "", TruncatedError{Path: filename, Len: len(target)}
	}

	return target, nil
}

// Remove drops the entry for wd. Missing entries are reported as
// fs.ErrNotExist so callers can ignore them.
func (r *Registry) Remove(wd int) error {
	return r.fs.Remove(r.Path(wd))
}

// Relocate moves the live registry aside for restore. moved is false when
// there was no registry yet.
func (r *Registry) Relocate() (moved bool, err error) {
	if errRename := r.fs.Rename(r.Dir(), r.OldDir()); errRename != nil {
		if errors.IsNotExist(errRename) {
			return false, nil
		}

		return false, errors.Wrapf(errRename, "move watches directory %s", r.Dir())
	}

	return true, nil
}

// OldEntries lists every name in the relocated registry.
func (r *Registry) OldEntries() ([]string, error) {
	return r.entries(r.OldDir())
}

func (r *Registry) entries(dir string) ([]string, error) {
	f, err := r.fs.Open(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open watches directory %s", dir)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "read watches directory %s", dir)
	}

	slices.Sort(names)
	return names, nil
}

// ReadName reads the live entry called name with the same checks as Read.
func (r *Registry) ReadName(name string) (string, error) {
	return r.readLink(filepath.Join(r.Dir(), name))
}

func (r *Registry) ReadOld(name string) (string, error) {
	return r.readLink(filepath.Join(r.OldDir(), name))
}

func (r *Registry) RemoveOld(name string) error {
	return r.fs.Remove(filepath.Join(r.OldDir(), name))
}

// RemoveOldDir removes the relocated registry, which must be empty by now.
func (r *Registry) RemoveOldDir() error {
	return r.fs.Remove(r.OldDir())
}

// DiscardOld removes the relocated registry together with whatever is left
// in it.
func (r *Registry) DiscardOld() error {
	return r.fs.RemoveAll(r.OldDir())
}

type Entry struct {
	Name string
	// WD is -1 when Name is not a decimal handle
	WD  int
	ID  string
	Err error
}

// List returns live entries ordered by handle. Entries that can not be read
// are returned with Err set.
func (r *Registry) List() ([]Entry, error) {
	names, err := r.entries(r.Dir())
	if err != nil {
		if errors.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	res := make([]Entry, 0, len(names))
	for _, name := range names {
		entry := Entry{Name: name, WD: -1} //nolint:exhaustruct // filled below
		if wd, errParse := strconv.Atoi(name); errParse == nil && wd >= 0 {
			entry.WD = wd
		} else {
			entry.Err = errors.Newf("entry name %q is not a watch handle", name)
		}

		if entry.Err == nil {
			entry.ID, entry.Err = r.ReadName(name)
		}

		res = append(res, entry)
	}

	slices.SortStableFunc(res, func(a, b Entry) int {
		if a.WD != b.WD {
			return a.WD - b.WD
		}
		return strings.Compare(a.Name, b.Name)
	})
	return res, nil
}

// Exists reports whether path is present without following symlinks.
func (r *Registry) Exists(path string) (bool, error) {
	linker, err := r.symlinker()
	if err != nil {
		return false, err
	}

	if _, _, errStat := linker.LstatIfPossible(path); errStat != nil {
		if errors.IsNotExist(errStat) {
			return false, nil
		}

		return false, errStat
	}

	return true, nil
}
