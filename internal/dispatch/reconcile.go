package dispatch

import (
	"context"
	"log/slog"
)

// The methods below let the directory reconciler drive the engine.

// EnsureKeyword registers a directory discovered on disk as a keyword.
func (e *Engine) EnsureKeyword(ctx context.Context, name string) error {
	_, err := e.CreateKeyword(ctx, name)
	return err
}

// ReconcileKeyword brings the index of keyword in line with its directory.
func (e *Engine) ReconcileKeyword(ctx context.Context, keyword string) error {
	adopted, forgotten, err := e.images.Reconcile(ctx, keyword)
	if adopted > 0 || forgotten > 0 {
		e.logger.Info("dispatch: reconciled keyword",
			slog.String("keyword", keyword), slog.Int("adopted", adopted), slog.Int("forgotten", forgotten))
	}
	return err
}

// AdoptFile indexes a file that appeared in a keyword directory.
func (e *Engine) AdoptFile(ctx context.Context, keyword, relPath string) (bool, error) {
	if !e.keywords.Exists(keyword) {
		return false, nil
	}
	ok, err := e.images.Adopt(ctx, keyword, relPath)
	if ok {
		e.observer.ImageIngested(keyword, true)
		e.events.Publish(EventImageAdded, map[string]string{"keyword": keyword, "path": relPath})
	}
	return ok, err
}

// ForgetFile drops the row of a file removed from a keyword directory.
func (e *Engine) ForgetFile(ctx context.Context, keyword, relPath string) (bool, error) {
	if !e.keywords.Exists(keyword) {
		return false, nil
	}
	return e.images.Forget(ctx, keyword, relPath)
}
