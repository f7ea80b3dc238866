package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shoenig/test"
	"github.com/shoenig/test/must"
	"github.com/shoenig/test/wait"

	"github.com/rprtr258/udevwatch/internal/config"
	"github.com/rprtr258/udevwatch/internal/infra/errors"
	"github.com/rprtr258/udevwatch/internal/infra/pidfile"
	"github.com/rprtr258/udevwatch/internal/registry"
)

// newTree lays out a sysfs with one misc device and its node.
func newTree(t *testing.T) config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Config{
		RuntimeDir: filepath.Join(root, "run"),
		SysDir:     filepath.Join(root, "sys"),
		DevDir:     filepath.Join(root, "dev"),
		Debug:      true,
	}

	syspath := filepath.Join(cfg.SysDir, "class", "misc", "probe")
	must.NoError(t, os.MkdirAll(syspath, 0o755))
	must.NoError(t, os.WriteFile(filepath.Join(syspath, "uevent"), []byte("DEVNAME=probe\n"), 0o644))
	must.NoError(t, os.MkdirAll(cfg.DevDir, 0o755))
	must.NoError(t, os.WriteFile(filepath.Join(cfg.DevDir, "probe"), nil, 0o644))
	must.NoError(t, os.MkdirAll(cfg.RuntimeDir, 0o755))
	return cfg
}

func startDaemon(t *testing.T, cfg config.Config, ids ...string) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	logger := zerolog.New(zerolog.NewTestWriter(t))
	go func() {
		done <- runDaemon(ctx, cfg, logger, ids)
	}()
	return cancel, done
}

func waitEntries(t *testing.T, reg *registry.Registry, n int) []registry.Entry {
	t.Helper()

	var entries []registry.Entry
	must.Wait(t, wait.InitialSuccess(
		wait.BoolFunc(func() bool {
			var err error
			entries, err = reg.List()
			return err == nil && len(entries) == n
		}),
		wait.Timeout(time.Second*5),
		wait.Gap(10*time.Millisecond),
	))
	return entries
}

func stopDaemon(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()

	cancel()
	select {
	case err := <-done:
		must.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRunDaemonWatchesDevices(t *testing.T) {
	cfg := newTree(t)
	reg := registry.NewOs(cfg.RuntimeDir)

	cancel, done := startDaemon(t, cfg, "+misc:probe")

	entries := waitEntries(t, reg, 1)
	test.Eq(t, "+misc:probe", entries[0].ID)
	test.NoError(t, entries[0].Err)

	must.NoError(t, os.WriteFile(filepath.Join(cfg.DevDir, "probe"), []byte("x"), 0o644))

	stopDaemon(t, cancel, done)

	// ended on exit
	entries, err := reg.List()
	must.NoError(t, err)
	test.SliceEmpty(t, entries)
}

func TestRunDaemonRestores(t *testing.T) {
	cfg := newTree(t)
	reg := registry.NewOs(cfg.RuntimeDir)
	must.NoError(t, reg.Write(99, "+misc:probe"))
	must.NoError(t, reg.Write(98, "+misc:gone"))

	cancel, done := startDaemon(t, cfg)

	entries := waitEntries(t, reg, 1)
	test.Eq(t, "+misc:probe", entries[0].ID)

	stopDaemon(t, cancel, done)

	exists, err := reg.Exists(reg.OldDir())
	must.NoError(t, err)
	test.False(t, exists)

	// restored watches stay recorded for the next run
	entries, err = reg.List()
	must.NoError(t, err)
	test.SliceLen(t, 1, entries)
}

func TestRunDaemonSingleInstance(t *testing.T) {
	cfg := newTree(t)
	reg := registry.NewOs(cfg.RuntimeDir)

	cancel, done := startDaemon(t, cfg, "+misc:probe")
	waitEntries(t, reg, 1)

	var buf bytes.Buffer
	printDaemon(&buf, cfg.PidFile())
	test.StrContains(t, buf.String(), "daemon is running, pid")

	err := runDaemon(context.Background(), cfg, zerolog.Nop(), nil)
	test.ErrorIs(t, err, pidfile.ErrLocked)

	stopDaemon(t, cancel, done)

	buf.Reset()
	printDaemon(&buf, cfg.PidFile())
	test.StrContains(t, buf.String(), "daemon is not running")
}

func TestRunDaemonUnknownDevice(t *testing.T) {
	cfg := newTree(t)

	err := runDaemon(context.Background(), cfg, zerolog.Nop(), []string{"+misc:absent"})
	test.ErrorContains(t, err, "resolve device +misc:absent")
}

func TestRunDaemonBadID(t *testing.T) {
	cfg := newTree(t)

	err := runDaemon(context.Background(), cfg, zerolog.Nop(), []string{"x1"})
	test.Error(t, err)
}

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	printEntries(&buf, []registry.Entry{
		{Name: "1", WD: 1, ID: "b8:0", Err: nil},
		{Name: "junk", WD: -1, ID: "", Err: errors.New("entry name \"junk\" is not a watch handle")},
	})

	out := buf.String()
	test.StrContains(t, out, "b8:0")
	test.StrContains(t, out, "junk -> ")
	test.StrContains(t, out, "is not a watch handle")
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	_app.SetOut(&buf)
	t.Cleanup(func() { _app.SetOut(nil) })
	t.Setenv(config.EnvRuntimeDir, t.TempDir())

	must.NoError(t, Run([]string{"udevwatch", "--config", filepath.Join(t.TempDir(), "none.yml"), "version"}))
	test.Eq(t, Version+"\n", buf.String())
}
