package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/iflastandards/standards-authz/pkg/observability"
)

// ReloadDelay coalesces the burst of events a single save produces
const ReloadDelay = 100 * time.Millisecond

// ApplyFunc receives the resource TTLs of a reloaded overlay
type ApplyFunc func(ttls map[string]time.Duration)

// Watcher reloads the overlay file when it changes
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	apply   ApplyFunc
	logger  *observability.Logger

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

// WatchOverlay starts watching path. The parent directory is watched so that
// editors which replace the file on save are still seen. A document that
// fails to parse is logged and the previous TTLs stay in effect.
func WatchOverlay(path string, apply ApplyFunc, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	clean := filepath.Clean(path)
	if err := fw.Add(filepath.Dir(clean)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", clean, err)
	}

	w := &Watcher{
		path:    clean,
		watcher: fw,
		apply:   apply,
		logger:  logger.WithField("overlay", clean),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
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
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Overlay watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(ReloadDelay, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	overlay, err := LoadOverlay(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring overlay change, keeping previous TTLs")
		return
	}
	w.apply(overlay.ResourceTTLs)
	w.logger.WithField("resource_types", len(overlay.ResourceTTLs)).Info("Reloaded cache TTL overlay")
}

// Close stops the watcher
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}
