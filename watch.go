package canary

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
)

const DefaultWatchDebounce = 100 * time.Millisecond

// FileWatchTrigger runs the registered callback whenever the watched file
// changes. Bursts of events within the debounce window trigger a single run.
type FileWatchTrigger struct {
	path     string
	debounce time.Duration
	logger   log.Logger
	callback RunFunc

	watcher  *fsnotify.Watcher
	fire     chan struct{}
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ TestScheduler = (*FileWatchTrigger)(nil)

// NewFileWatchTrigger creates a trigger for path. A non-positive debounce
// selects DefaultWatchDebounce.
func NewFileWatchTrigger(path string, debounce time.Duration, logger log.Logger) *FileWatchTrigger {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &FileWatchTrigger{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
		fire:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback to be called when the file changes.
func (w *FileWatchTrigger) RegisterCallback(callback RunFunc) {
	w.callback = callback
}

// Start begins watching. The directory holding the file is watched so that
// editors replacing the file are noticed as well.
func (w *FileWatchTrigger) Start(ctx context.Context) error {
	if w.callback == nil {
		return errors.New("no run callback registered")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running.Store(true)
	w.logger.Info("Watching suite for changes", "file", w.path)

	w.wg.Add(2)
	go w.watchLoop()
	go w.runLoop(ctx)
	return nil
}

func (w *FileWatchTrigger) watchLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// Ignore CHMOD events which can be noisy
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("Suite file changed", "file", event.Name, "op", event.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case w.fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *FileWatchTrigger) runLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.fire:
			if !w.running.Load() {
				return
			}
			w.logger.Info("Running tests after suite change", "file", w.path)
			if err := w.callback(ctx); err != nil {
				w.logger.Error("Error running tests after suite change", "error", err)
			}
		case <-w.done:
			return
		case <-ctx.Done():
			w.running.Store(false)
			return
		}
	}
}

// Stop stops watching. It is safe to call more than once.
func (w *FileWatchTrigger) Stop() error {
	w.running.Store(false)
	if w.watcher == nil {
		return nil
	}
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// Stopped returns true if the watcher is stopped.
func (w *FileWatchTrigger) Stopped() bool {
	return !w.running.Load()
}

// WaitForShutdown blocks until the watch goroutines have terminated.
func (w *FileWatchTrigger) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("Timed out waiting for file watcher to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
