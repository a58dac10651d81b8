package cfg

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads a YAML config file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Settings)
}

// NewWatcher watches path. onChange receives every successfully reloaded
// and validated Settings; files that fail to load are logged and skipped.
func NewWatcher(path string, onChange func(Settings)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace the file, so watch the directory
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{path: filepath.Clean(path), watcher: w, onChange: onChange}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	log.Debug().Str("path", w.path).Msg("Watching config file")

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			settings, err := loadFromYAML(w.path)
			if err != nil {
				log.Warn().Err(err).Str("path", w.path).Msg("Config reload failed")
				continue
			}
			log.Info().Str("path", w.path).Msg("Config reloaded")
			w.onChange(settings)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")

		case <-ctx.Done():
			return
		}
	}
}
