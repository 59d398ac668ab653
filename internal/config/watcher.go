package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"overwatch/pkg/log"
)

// Watcher reloads the configuration file when it changes on disk and calls
// onReload with the freshly parsed config. Only hot-reloadable settings
// (currently the log level) should be consumed from reloads; structural
// settings like BasePath require a restart.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory rather than the file itself so editors that
	// replace the file (rename + create) keep the watch alive.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{path: path, watcher: fw, onReload: onReload}, nil
}

// Start begins watching until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Name != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(w.path)
				if err != nil {
					log.Warn("Config file changed but could not be reloaded", "path", w.path, "error", err)
					continue
				}
				log.Info("Config file reloaded", "path", w.path)
				w.onReload(cfg)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Config watcher error", "error", err)
			}
		}
	}()
}
