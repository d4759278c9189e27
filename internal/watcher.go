package internal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the config file when it changes on disk and reports token changes
type ConfigWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	token   string
}

// NewConfigWatcher watches the directory of path, so editors that replace the file are
// noticed too. token is the value currently in use.
func NewConfigWatcher(path, token string) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{watcher: w, path: abs, token: token}, nil
}

// Watch delivers the reloaded config each time its token changes to a non-empty value. The channel is
// closed when ctx is done or the watcher fails.
func (cw *ConfigWatcher) Watch(ctx context.Context) <-chan *Config {
	out := make(chan *Config, 1)

	go func() {
		defer close(out)
		defer cw.watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != cw.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				cfg, changed := cw.reload()
				if !changed {
					continue
				}
				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				LogWarn("config watcher: %v", err)
			}
		}
	}()

	return out
}

func (cw *ConfigWatcher) reload() (*Config, bool) {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		LogWarn("ignoring config change: %v", err)
		return nil, false
	}
	// a file being rewritten is briefly empty
	if cfg.Token == "" || cfg.Token == cw.token {
		return nil, false
	}
	LogDebug("token changed in %s", cw.path)
	cw.token = cfg.Token
	return cfg, true
}
