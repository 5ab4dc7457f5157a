package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/nodecycle/internal/cliconfig"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func startWatcher(t *testing.T, path string) (*Watcher, <-chan cliconfig.FileConfig) {
	t.Helper()
	changes := make(chan cliconfig.FileConfig, 16)
	w := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond}, func(fc cliconfig.FileConfig) {
		changes <- fc
	}, nil)
	if err := w.Begin(context.Background()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.End(ctx)
	})
	return w, changes
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `log_level = "info"`)

	_, changes := startWatcher(t, path)

	writeConfig(t, path, `log_level = "debug"`)

	select {
	case fc := <-changes:
		if fc.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", fc.LogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after config write")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, `log_level = "info"`)

	_, changes := startWatcher(t, path)

	writeConfig(t, filepath.Join(dir, "other.toml"), `log_level = "debug"`)

	select {
	case fc := <-changes:
		t.Errorf("unexpected reload: %+v", fc)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `log_level = "info"`)

	_, changes := startWatcher(t, path)

	writeConfig(t, path, `this is not toml`)
	select {
	case fc := <-changes:
		t.Fatalf("invalid file should not be delivered: %+v", fc)
	case <-time.After(200 * time.Millisecond):
	}

	writeConfig(t, path, `log_level = "warn"`)
	select {
	case fc := <-changes:
		if fc.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", fc.LogLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after fixing config")
	}
}

func TestWatcher_NoCallbacksAfterEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, `log_level = "info"`)

	w, changes := startWatcher(t, path)
	if err := w.End(context.Background()); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	writeConfig(t, path, `log_level = "debug"`)
	select {
	case fc := <-changes:
		t.Errorf("callback after End: %+v", fc)
	case <-time.After(200 * time.Millisecond):
	}

	if err := w.End(context.Background()); err != nil {
		t.Errorf("second End = %v, want nil", err)
	}
}

func TestWatcher_BeginMissingDirectory(t *testing.T) {
	w := New(DefaultConfig(filepath.Join(t.TempDir(), "missing", "config.toml")), nil, nil)
	if err := w.Begin(context.Background()); err == nil {
		t.Error("Begin() = nil, want error for missing directory")
	}
	if err := w.End(context.Background()); err != nil {
		t.Errorf("End() after failed Begin = %v", err)
	}
}

func TestWatcher_Name(t *testing.T) {
	if got := New(Config{}, nil, nil).Name(); got != "configwatcher" {
		t.Errorf("Name() = %q", got)
	}
}
