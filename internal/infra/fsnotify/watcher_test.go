package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shoenig/test"
	"github.com/shoenig/test/must"
	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/rprtr258/udevwatch/internal/registry"
)

func nextChange(t *testing.T, m *Monitor) Change {
	t.Helper()

	for {
		select {
		case c := <-m.Changes:
			return c
		case err := <-m.Errors:
			t.Fatalf("monitor error: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("no change observed")
		}
	}
}

func newMonitor(t *testing.T, root string) *Monitor {
	t.Helper()

	return newMonitorOn(t, registry.NewOs(root))
}

func newMonitorOn(t *testing.T, reg *registry.Registry) *Monitor {
	t.Helper()

	m, err := NewMonitor(reg, zerolog.New(zerolog.NewTestWriter(t)))
	must.NoError(t, err)
	return m
}

// longLinkFs reports every link target as longer than PATH_MAX.
type longLinkFs struct {
	afero.OsFs
}

func (longLinkFs) ReadlinkIfPossible(string) (string, error) {
	return strings.Repeat("x", registry.PathMax), nil
}

func TestMonitorEntries(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	dir := filepath.Join(root, "watch")
	must.NoError(t, os.Mkdir(dir, 0o755))

	m := newMonitor(t, root)

	must.NoError(t, os.Symlink("b8:0", filepath.Join(dir, "1")))
	c := nextChange(t, m)
	test.Eq(t, Change{Op: EntryAdded, Name: "1", ID: "b8:0"}, c)

	must.NoError(t, os.Remove(filepath.Join(dir, "1")))
	c = nextChange(t, m)
	test.Eq(t, Change{Op: EntryRemoved, Name: "1", ID: ""}, c)

	must.NoError(t, m.Close())
}

func TestMonitorDirectoryAppearsLater(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	m := newMonitor(t, root)

	dir := filepath.Join(root, "watch")
	must.NoError(t, os.Mkdir(dir, 0o755))
	// Give the loop a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	must.NoError(t, os.Symlink("c1:3", filepath.Join(dir, "4")))
	c := nextChange(t, m)
	test.Eq(t, EntryAdded, c.Op)
	test.Eq(t, "4", c.Name)

	must.NoError(t, m.Close())
}

func TestMonitorSurvivesRelocation(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	dir := filepath.Join(root, "watch")
	must.NoError(t, os.Mkdir(dir, 0o755))

	m := newMonitor(t, root)

	must.NoError(t, os.Rename(dir, filepath.Join(root, "watch.old")))
	must.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)

	must.NoError(t, os.Symlink("+net:lo", filepath.Join(dir, "7")))
	c := nextChange(t, m)
	test.Eq(t, Change{Op: EntryAdded, Name: "7", ID: "+net:lo"}, c)

	must.NoError(t, m.Close())
}

func TestMonitorTruncatedEntry(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	dir := filepath.Join(root, "watch")
	must.NoError(t, os.Mkdir(dir, 0o755))

	m := newMonitorOn(t, registry.New(longLinkFs{}, root))

	must.NoError(t, os.Symlink("b8:0", filepath.Join(dir, "3")))
	c := nextChange(t, m)
	test.Eq(t, EntryAdded, c.Op)
	test.Eq(t, "3", c.Name)
	test.Eq(t, "", c.ID)
	test.ErrorIs(t, c.Err, registry.ErrTruncated)

	must.NoError(t, m.Close())
}

func TestMonitorCloseTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newMonitor(t, t.TempDir())
	must.NoError(t, m.Close())
	test.NoError(t, m.Close())

	_, ok := <-m.Changes
	test.False(t, ok)
}

func TestMonitorMissingRoot(t *testing.T) {
	_, err := NewMonitor(registry.NewOs(filepath.Join(t.TempDir(), "nope")), zerolog.Nop())
	test.Error(t, err)
}

func TestChangeOpString(t *testing.T) {
	test.Eq(t, "added", EntryAdded.String())
	test.Eq(t, "removed", EntryRemoved.String())
	test.Eq(t, "unknown", ChangeOp(0).String())
}
