package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/randpic/internal/storage"
)

// settleDelay is how long a path must stay quiet before it is adopted, so
// files copied in by hand are read whole.
const settleDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "keyword", "adopted", "forgotten".
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the store root and its keyword
// directories and processes change events until ctx is cancelled. Nested
// directories below a keyword are ignored.
//
// New top-level directories become keywords. Created or written files are
// adopted once they settle. Removed or renamed files are forgotten and their
// keyword is reconciled shortly after to catch the other half of a rename.
func Watch(ctx context.Context, files storage.Provider, target Target, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := files.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	dirs, err := files.Dirs()
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if err := w.Add(filepath.Join(root, d)); err != nil {
			logger.Warn("watcher: add dir failed", slog.String("dir", d), slog.String("error", err.Error()))
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	pending := make(map[string]string) // relPath -> keyword
	stale := make(map[string]struct{}) // keywords to reconcile

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	flush := func() {
		for rel, kw := range pending {
			ok, err := target.AdoptFile(ctx, kw, rel)
			if err != nil {
				logger.Warn("watcher: adopt failed", slog.String("path", rel), slog.String("error", err.Error()))
				continue
			}
			if ok {
				logger.Debug("watcher: adopted", slog.String("path", rel))
				notify("adopted", rel)
			}
		}
		clear(pending)
		for kw := range stale {
			if err := target.ReconcileKeyword(ctx, kw); err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("keyword", kw), slog.String("error", err.Error()))
			}
		}
		clear(stale)
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			if hidden(parts) {
				continue
			}

			switch len(parts) {
			case 1:
				kw := parts[0]
				if ev.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(ev.Name); statErr != nil || !info.IsDir() {
						continue
					}
					if err := w.Add(ev.Name); err != nil {
						logger.Warn("watcher: add new dir failed", slog.String("dir", kw), slog.String("error", err.Error()))
					}
					if err := target.EnsureKeyword(ctx, kw); err != nil {
						logger.Warn("watcher: directory is not a valid keyword", slog.String("dir", kw), slog.String("error", err.Error()))
						continue
					}
					notify("keyword", kw)
					stale[kw] = struct{}{}
					schedule()
				} else if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					stale[kw] = struct{}{}
					schedule()
				}

			case 2:
				kw, relPath := parts[0], parts[0]+"/"+parts[1]
				switch {
				case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
					pending[relPath] = kw
					schedule()

				case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					// Rename fires on the old path only; the new path
					// arrives as a Create if it stays inside a watched dir.
					delete(pending, relPath)
					ok, err := target.ForgetFile(ctx, kw, relPath)
					if err != nil {
						logger.Warn("watcher: forget failed", slog.String("path", relPath), slog.String("error", err.Error()))
					} else if ok {
						logger.Debug("watcher: forgotten", slog.String("path", relPath))
						notify("forgotten", relPath)
					}
					stale[kw] = struct{}{}
					schedule()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// hidden reports whether any segment is a dotfile, which covers the
// store's own temporary files.
func hidden(parts []string) bool {
	for _, p := range parts {
		if strings.HasPrefix(p, ".") || strings.HasPrefix(p, storage.TempPrefix) {
			return true
		}
	}
	return false
}
