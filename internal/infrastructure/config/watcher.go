package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// KeyWatcher watches the API-key file and pushes new keys to a callback.
// Editors replace files on save, so the parent directory is watched and
// events are filtered by name.
type KeyWatcher struct {
	path     string
	onChange func(key string)
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewKeyWatcher creates a watcher for the given key file.
// onChange receives the trimmed file contents on every modification.
func NewKeyWatcher(path string, onChange func(key string), logger *zap.Logger) *KeyWatcher {
	return &KeyWatcher{
		path:     path,
		onChange: onChange,
		logger:   logger.With(zap.String("component", "key-watcher")),
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. Returns an error if the directory cannot be watched.
func (w *KeyWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher
	w.running = true

	w.logger.Info("Key watcher started", zap.String("path", w.path))
	go w.loop()
	return nil
}

// Stop halts the watcher.
func (w *KeyWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	w.watcher.Close()
}

func (w *KeyWatcher) loop() {
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(w.path)
			if err != nil {
				w.logger.Warn("Key file unreadable after change", zap.Error(err))
				continue
			}
			key := strings.TrimSpace(string(data))
			if key == "" {
				continue
			}
			w.logger.Info("Key file changed, reloading")
			w.onChange(key)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Key watcher error", zap.Error(err))
		}
	}
}
