package prefs

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// OnChangeFunc is invoked with the reloaded preferences.
type OnChangeFunc func(p Prefs)

// Watcher reloads the preferences file whenever it changes on disk.
// The parent directory is watched so atomic replacements are seen.
type Watcher struct {
	mu       sync.RWMutex
	store    *Store
	current  Prefs
	watcher  *fsnotify.Watcher
	onChange OnChangeFunc
	log      zerolog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher loads the current preferences and prepares a watch on
// store's file.
func NewWatcher(store *Store, onChange OnChangeFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		store:    store,
		current:  store.Load(),
		watcher:  fw,
		onChange: onChange,
		log:      store.log,
		stopCh:   make(chan struct{}),
	}, nil
}

// Current returns the last loaded preferences.
func (w *Watcher) Current() Prefs {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start watches for changes. It blocks until Stop is called.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	w.log.Info().Str("path", w.store.Path()).Msg("watching preferences")

	target := filepath.Clean(w.store.Path())
	for {
		select {
		case <-w.stopCh:
			w.log.Debug().Msg("watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !isRelevantEvent(event) {
				continue
			}
			w.log.Debug().Str("op", event.Op.String()).Msg("preferences changed")
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) reload() {
	p := w.store.Load()

	w.mu.Lock()
	changed := p != w.current
	w.current = p
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(p)
	}
}

// Stop halts the watch loop and releases the fsnotify resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func isRelevantEvent(e fsnotify.Event) bool {
	return e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
