package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher monitors the configuration file and triggers reloads. The parent
// directory is watched rather than the file itself so atomic editor saves
// (write to temp, rename over) are still observed.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	callbacks []func(*Config)
	stopCh    chan struct{}
	mu        sync.RWMutex
	running   bool
	lastMod   time.Time
}

// NewWatcher creates a watcher for the given configuration file path.
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return &Watcher{
		path:    abs,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked with the freshly loaded configuration
// after every successful reload.
func (w *Watcher) OnReload(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}
	if stat, err := os.Stat(w.path); err == nil {
		w.lastMod = stat.ModTime()
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	w.running = true
	go w.watchLoop()
	return nil
}

// Stop stops the watcher and releases the underlying notifier.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			// Debounce rapid successive writes from editors and tooling.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, w.handleConfigChange)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) handleConfigChange() {
	stat, err := os.Stat(w.path)
	if err != nil {
		// File vanished mid-save, the follow-up create event retries.
		return
	}
	w.mu.Lock()
	if !stat.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return
	}
	w.lastMod = stat.ModTime()
	w.mu.Unlock()

	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Errorf("failed to reload configuration: %v", err)
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		callback(cfg)
	}
	log.Info("configuration reloaded")
}
