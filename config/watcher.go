package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/logger"
)

// Watcher watches a config file for changes and triggers reload callbacks.
// Rapid successive writes (editors, atomic-save tools) are debounced.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// ReloadCallback is called with the freshly loaded config after a change.
type ReloadCallback func(*Config) error

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(configPath); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback to be called when config is reloaded
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for config file changes
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops watching for config changes
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				logger.Infow("Config watcher detected change",
					"file", event.Name,
					"op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("Config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	newConfig, err := LoadFromFile(w.configPath)
	if err != nil {
		return errors.Wrap(err, "failed to reload config")
	}

	logger.Infow("Config reloaded", "path", w.configPath)

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(newConfig); err != nil {
			logger.Warnw("Config reload callback error", "error", err)
			// Keep notifying the remaining callbacks
		}
	}

	return nil
}
