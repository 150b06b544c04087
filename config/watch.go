package config

import (
	"github.com/fsnotify/fsnotify"
)

// WatchRestartRequired watches the configured env file and logs via
// warn whenever it changes. Configuration is loaded once at startup and
// held immutably for the life of the process — each worker's pool and
// timer-wheel capacities are sized against it at construction — so a
// changed .env file cannot be hot-applied; this only tells an operator
// a restart is needed to pick it up.
func WatchRestartRequired(envFile string, warn func(path string)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(envFile); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					warn(ev.Name)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w, nil
}
