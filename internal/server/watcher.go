package server

import (
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatchConfig reloads the limits whenever the config file changes, until done is closed. The directory is watched
// rather than the file, since editors often replace a file instead of writing to it.
func WatchConfig(sta *State, done <-chan struct{}) error {
	if sta.ConfigPath() == "" {
		return errors.New("config was not read from a file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	path := filepath.Clean(sta.ConfigPath())
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				limits, err := sta.ReloadLimits()
				if err != nil {
					log.Warnf("config changed but could not be reloaded: %v", err)
					continue
				}
				log.WithFields(log.Fields{
					"callTimeout": limits.CallTimeout,
					"maxConns":    limits.MaxConns,
					"rxRate":      limits.RxRate,
					"txRate":      limits.TxRate,
				}).Info("Reloaded limits")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("watching config: %v", err)
			case <-done:
				return
			}
		}
	}()
	return nil
}
