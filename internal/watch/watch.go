// Package watch re-runs reconciliation whenever the document directory or
// the index file changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/wikisync/internal/checksum"
	"github.com/starford/wikisync/internal/models"
)

// DefaultDebounce is used when Run is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// Trigger is invoked after a burst of relevant changes has settled. It
// returns the files it wrote, as absolute path → checksum of the content.
type Trigger func(ctx context.Context) map[string]string

// Run watches docDir and the directory holding indexPath until ctx is
// cancelled. Document create/write/remove/rename events and any event on the
// index file itself are debounced and then fire fn. Events on a file fn just
// wrote are dropped while the file still holds what fn left there, so fn does
// not trigger itself.
func Run(ctx context.Context, docDir, indexPath string, debounce time.Duration, logger *slog.Logger, fn Trigger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	docDir, err := filepath.Abs(docDir)
	if err != nil {
		return err
	}
	indexPath, err = filepath.Abs(indexPath)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(docDir); err != nil {
		return err
	}
	indexDir := filepath.Dir(indexPath)
	if indexDir != docDir {
		if err := w.Add(indexDir); err != nil {
			return err
		}
	}

	logger.Info("watcher: started",
		slog.String("dir", docDir),
		slog.String("index", indexPath),
		slog.Duration("debounce", debounce))

	var timer *time.Timer
	var fire <-chan time.Time
	ownWrites := map[string]string{}

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: changes settled, reconciling")
			ownWrites = fn(ctx)
			if ownWrites == nil {
				ownWrites = map[string]string{}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, docDir, indexPath) {
				continue
			}
			if sum, ok := ownWrites[ev.Name]; ok {
				if fileChecksum(ev.Name) == sum {
					logger.Debug("watcher: own write", slog.String("path", ev.Name))
					continue
				}
				delete(ownWrites, ev.Name)
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev can change the outcome of a reconciliation.
func relevant(ev fsnotify.Event, docDir, indexPath string) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Name == indexPath {
		return true
	}
	return filepath.Dir(ev.Name) == docDir && models.IsDocument(ev.Name)
}

// fileChecksum returns "" when path cannot be read, e.g. after a removal.
func fileChecksum(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}
