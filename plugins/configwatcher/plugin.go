// Package configwatcher reloads the nodecycle TOML config file when it
// changes on disk. The watcher is a lifecycle.Subsystem: Begin starts
// watching the file's directory and End stops it.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/nodecycle/internal/cliconfig"
	"github.com/bft-labs/nodecycle/pkg/log"
)

// Config holds configuration options for the config watcher.
type Config struct {
	// Path is the config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config for path with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Watcher invokes a callback with the freshly parsed file every time the
// config file is written or recreated.
type Watcher struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	onChange      func(cliconfig.FileConfig)
	logger        log.Logger

	// Runtime state
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a watcher. onChange runs on the watcher's goroutine and must
// not block for long.
func New(cfg Config, onChange func(cliconfig.FileConfig), logger log.Logger) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Watcher{
		path:          filepath.Clean(cfg.Path),
		debounceDelay: cfg.DebounceDelay,
		onChange:      onChange,
		logger:        log.OrNoop(logger).With(log.String("component", "configwatcher")),
	}
}

// Name returns the subsystem name.
func (w *Watcher) Name() string {
	return "configwatcher"
}

// Begin starts watching the directory that holds the config file. Watching
// the directory rather than the file keeps working when editors replace the
// file.
func (w *Watcher) Begin(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return fmt.Errorf("config watcher already running")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	w.watcher = fw
	w.cancel = cancel

	w.wg.Add(1)
	go w.watchLoop(watchCtx, fw)

	w.logger.Info("watching config file", log.String("path", w.path))
	return nil
}

// End stops the watcher and waits for the loop to exit.
func (w *Watcher) End(ctx context.Context) error {
	w.mu.Lock()
	fw, cancel := w.watcher, w.cancel
	w.watcher, w.cancel = nil, nil
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	cancel()
	closeErr := fw.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for config watcher: %w", ctx.Err())
	}
	return closeErr
}

// watchLoop watches for config file changes.
func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debounceReload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) debounceReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	fc, err := cliconfig.LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous settings",
			log.String("path", w.path),
			log.Err(err),
		)
		return
	}
	w.logger.Info("config file changed", log.String("path", w.path))
	if w.onChange != nil {
		w.onChange(fc)
	}
}
