package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

// Watcher reloads the config file on change and hands a fresh copy to
// the callback. The callback decides whether the app is in a state
// where new settings may be applied (only between sessions).
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logger.Logger
	onLoad  func(RecorderConfig)

	mu        sync.Mutex
	reloading bool
	delayed   bool
}

func NewWatcher(log *logger.Logger, onLoad func(RecorderConfig)) *Watcher {
	return &Watcher{log: log, onLoad: onLoad}
}

// Start begins watching the dir of the active config file.
// No-op when the watcher can't be created, config reload is a
// convenience and not worth failing the app over.
func (w *Watcher) Start() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error().Err(err).Msg("config watcher has failed")
		return
	}
	w.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 &&
					filepath.Ext(event.Name) == ".yaml" {
					w.reload()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	for _, dir := range []string{".", "configs"} {
		if err = watcher.Add(dir); err != nil {
			w.log.Debug().Err(err).Msgf("config watch skipped for %v", dir)
		}
	}
}

// reload is throttled the way the fs emits event storms on save:
// a reload that comes in while one is running is coalesced into a
// single trailing run.
func (w *Watcher) reload() {
	w.mu.Lock()
	if w.reloading {
		w.delayed = true
		w.mu.Unlock()
		return
	}
	w.reloading = true
	w.mu.Unlock()

	var conf RecorderConfig
	if err := LoadConfig(&conf, recorderConfigPath); err != nil {
		w.log.Error().Err(err).Msg("config reload failed")
	} else {
		conf.expandSpecialTags()
		conf.fixValues()
		w.log.Info().Msg("config reloaded")
		w.onLoad(conf)
	}

	w.mu.Lock()
	w.reloading = false
	again := w.delayed
	w.delayed = false
	w.mu.Unlock()
	if again {
		go w.reload()
	}
}

func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}
