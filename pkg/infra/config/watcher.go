// Package config watches the configuration file and hands changes to
// subscribed components while the service is running.
package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// ChangeHandler is invoked with the re-read configuration after the file
// changes.
type ChangeHandler func(v *viper.Viper) error

// Watcher notifies subscribers when the configuration file changes.
type Watcher struct {
	viper    *viper.Viper
	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	order    []string
	watching bool
}

// NewWatcher creates a watcher over a viper instance that has already read
// its configuration file.
func NewWatcher(v *viper.Viper) *Watcher {
	return &Watcher{
		viper:    v,
		handlers: make(map[string]ChangeHandler),
	}
}

// Subscribe registers handler under id, replacing any previous handler with
// the same id. Handlers run in subscription order.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[id]; !ok {
		w.order = append(w.order, id)
	}
	w.handlers[id] = handler
}

// Start begins watching the file. Calling it again has no effect.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("Config file changed", "file", e.Name, "op", e.Op.String())
		w.Notify()
	})
	w.viper.WatchConfig()
	logger.Infow("Watching config file for changes", "file", w.viper.ConfigFileUsed())
}

// Notify runs every handler against the current configuration. A failing
// handler is logged and does not stop the others. It returns the number of
// handlers that failed.
func (w *Watcher) Notify() int {
	w.mu.RLock()
	ids := append([]string(nil), w.order...)
	handlers := make([]ChangeHandler, len(ids))
	for i, id := range ids {
		handlers[i] = w.handlers[id]
	}
	w.mu.RUnlock()

	failed := 0
	for i, h := range handlers {
		if err := h(w.viper); err != nil {
			failed++
			logger.Errorw("Config reload handler failed", "handler", ids[i], "error", err.Error())
		}
	}
	return failed
}

// IsWatching reports whether Start has been called.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}
