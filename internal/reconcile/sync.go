// Package reconcile keeps the image index in line with the keyword
// directories on disk, once at startup and continuously while serving.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/randpic/internal/storage"
)

// Target is the side of the engine the reconciler drives.
type Target interface {
	EnsureKeyword(ctx context.Context, name string) error
	ReconcileKeyword(ctx context.Context, keyword string) error
	AdoptFile(ctx context.Context, keyword, relPath string) (bool, error)
	ForgetFile(ctx context.Context, keyword, relPath string) (bool, error)
}

// Sync walks the store root and brings the index up to date:
//   - every top-level directory becomes a keyword
//   - unindexed files are adopted, duplicates removed
//   - rows of files removed from disk are forgotten
//
// Per-keyword failures are logged and joined into the returned error.
func Sync(ctx context.Context, files storage.Provider, target Target, logger *slog.Logger) error {
	dirs, err := files.Dirs()
	if err != nil {
		return err
	}

	var errs []error
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := target.EnsureKeyword(ctx, dir); err != nil {
			logger.Warn("sync: skipping directory", slog.String("dir", dir), slog.String("error", err.Error()))
			continue
		}
		if err := target.ReconcileKeyword(ctx, dir); err != nil {
			logger.Warn("sync: reconcile failed", slog.String("keyword", dir), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		logger.Debug("sync: keyword reconciled", slog.String("keyword", dir))
	}
	return errors.Join(errs...)
}
