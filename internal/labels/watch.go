package labels

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/image-annotator-mcp/internal/clock"
)

// ReloadDelay is how long the watcher waits for writes to settle before
// re-reading the file. Editors often save in several steps.
const ReloadDelay = 100 * time.Millisecond

// Watcher reloads a label set file when it changes on disk and hands every
// successfully parsed set to a callback. Parse failures are logged and the
// previous set stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *clock.Debouncer
	onChange func(*Set)
	logger   *slog.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

// Watch starts watching path. The parent directory is watched rather than
// the file, so atomic rename-on-save is picked up. post, when non-nil,
// runs the callback on the caller's event loop.
func Watch(path string, clk clock.Clock, post func(func()), logger *slog.Logger, onChange func(*Set)) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.Real()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch label set: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch label set: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch label set: %w", err)
	}
	w := &Watcher{
		path:     abs,
		watcher:  fw,
		debounce: clock.NewDebouncer(clk, ReloadDelay, post),
		onChange: onChange,
		logger:   logger.With("component", "labels", "path", abs),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.debounce.Trigger(w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("label watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	set, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("label set reload failed", "error", err)
		return
	}
	w.logger.Info("label set reloaded", "controls", len(set.Controls))
	w.onChange(set)
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	w.debounce.Cancel()
	return err
}
