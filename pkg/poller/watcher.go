package poller

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/harun/fsdispatch/pkg/fsutil"
	"github.com/rs/zerolog"
)

// watcher turns fsnotify events on specific files into coalesced wakeups.
// Directories are watched rather than files so that atomic renames onto a
// watched path are seen.
type watcher struct {
	fsw    *fsnotify.Watcher
	files  map[string]bool
	wake   chan<- struct{}
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func newWatcher(paths []string, wake chan<- struct{}, logger zerolog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &watcher{
		fsw:    fsw,
		files:  make(map[string]bool, len(paths)),
		wake:   wake,
		logger: logger,
	}

	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if fsutil.IsTemp(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil || !w.files[name] {
		return
	}

	w.logger.Debug().
		Str("file", filepath.Base(event.Name)).
		Str("op", event.Op.String()).
		Msg("File change detected")

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *watcher) Close() error {
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
