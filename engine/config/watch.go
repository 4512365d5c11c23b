package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	mu *sync.Mutex

	path     string
	fsnotify *fsnotify.Watcher
	onChange func(Config)
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
}

// Watcher reloads a configuration file whenever it is written.
type Watcher interface {
	// Path returns the watched file.
	//
	// Returns:
	//   - string: the path
	Path() string

	// Close stops watching. Safe to call more than once.
	//
	// Returns:
	//   - error: an error from the underlying watcher
	Close() error
}

var _ Watcher = &watcher{}

// Watch starts watching the configuration file at path. Every time the file is created or
// written it is loaded again and, if valid, passed to onChange from the watcher's goroutine.
// Invalid files are logged and skipped. The directory is watched rather than the file so
// editors that replace the file on save keep being followed.
//
// Parameters:
//   - path: the configuration file
//   - onChange: called with each successfully reloaded configuration
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error creating the watcher or watching the directory
func Watch(path string, onChange func(Config)) (Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("watch config: %w", err)
	}

	w := &watcher{
		mu:       &sync.Mutex{},
		path:     abs,
		fsnotify: fsWatch,
		onChange: onChange,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.start()
	common.LogDebug("watching config %s", abs)
	return w, nil
}

func (w *watcher) start() {
	defer close(w.stopped)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			c, err := Load(w.path)
			if err != nil {
				common.LogWarn("config reload skipped: %v", err)
				continue
			}
			common.LogInfo("config reloaded from %s", w.path)
			w.onChange(c)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			common.LogError("config watcher: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *watcher) Path() string {
	return w.path
}

func (w *watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return nil
	}
	w.isClosed = true
	close(w.done)
	w.mu.Unlock()

	<-w.stopped
	return w.fsnotify.Close()
}
