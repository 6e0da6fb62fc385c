package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/domain/validation"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher serves the most recently loaded catalog and reloads it when the
// file changes. A file that fails to parse leaves the previous catalog active.
type Watcher struct {
	path     string
	current  atomic.Pointer[validation.Catalog]
	debounce time.Duration
	reloads  atomic.Int64
}

var _ ports.CatalogSource = (*Watcher)(nil)

// NewWatcher loads path once. The returned watcher does not watch until Run is called.
func NewWatcher(path string) (*Watcher, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, debounce: defaultDebounce}
	w.current.Store(&c)
	return w, nil
}

func (w *Watcher) Catalog() validation.Catalog {
	return *w.current.Load()
}

// Reloads counts successful reloads after the initial load.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors that replace the file by rename are picked up as well.
func (w *Watcher) Run(ctx context.Context) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "catalog.watcher"), slog.String("path", w.path))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return errs.Wrapf(err, "watch %q", filepath.Dir(w.path))
	}
	logging.Info(logCtx, "watching specialty catalog")

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload(logCtx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "catalog watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	c, err := LoadFile(w.path)
	if err != nil {
		logging.Warn(ctx, "specialty catalog reload failed, keeping previous", slog.Any("err", errs.Loggable(err)))
		return
	}
	w.current.Store(&c)
	w.reloads.Add(1)
	logging.Info(ctx, "specialty catalog reloaded", slog.Int("specialties", len(c)))
}
