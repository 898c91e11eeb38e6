package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/models"
	"github.com/starford/randpic/internal/storage"
)

// Registry is the set of keyword collections.
type Registry struct {
	ns      *namespace
	db      index.CatalogIndex
	files   storage.Provider
	timeout time.Duration
	logger  *slog.Logger
}

// EnsureExists returns the keyword, creating its directory and row when
// it is new; created is true only for the call that made it. Fails with
// ErrNameConflict when name is an alias.
func (r *Registry) EnsureExists(ctx context.Context, name string) (k models.Keyword, created bool, err error) {
	r.ns.mu.RLock()
	k, ok := r.ns.keywords[name]
	r.ns.mu.RUnlock()
	if ok {
		return k, false, nil
	}
	if err := ValidateKeyword(name); err != nil {
		return models.Keyword{}, false, err
	}

	r.ns.mu.Lock()
	defer r.ns.mu.Unlock()

	if k, ok := r.ns.keywords[name]; ok {
		return k, false, nil
	}
	if _, ok := r.ns.aliases[name]; ok {
		return models.Keyword{}, false, fmt.Errorf("%w: %q is an alias", apperr.ErrNameConflict, name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	madeDir, err := r.files.Mkdir(name)
	if err != nil {
		return models.Keyword{}, false, fmt.Errorf("%w: catalog: %w", apperr.ErrIO, err)
	}
	k, err = r.db.InsertKeyword(ctx, name, name)
	if err != nil {
		// A leftover directory would be registered by the next sync.
		if madeDir {
			if rmErr := r.files.Rmdir(name); rmErr != nil {
				r.logger.Error("catalog: rollback failed",
					slog.String("keyword", name), slog.String("error", rmErr.Error()))
			}
		}
		return models.Keyword{}, false, fmt.Errorf("%w: catalog: %w", apperr.ErrIO, err)
	}
	r.ns.keywords[name] = k
	r.ns.order = append(r.ns.order, name)
	r.logger.Info("catalog: keyword created", slog.String("keyword", name))
	return k, true, nil
}

// Exists reports whether name is a keyword.
func (r *Registry) Exists(name string) bool {
	r.ns.mu.RLock()
	defer r.ns.mu.RUnlock()
	_, ok := r.ns.keywords[name]
	return ok
}

// Get returns the keyword or ErrUnknownKeyword.
func (r *Registry) Get(name string) (models.Keyword, error) {
	r.ns.mu.RLock()
	defer r.ns.mu.RUnlock()
	k, ok := r.ns.keywords[name]
	if !ok {
		return models.Keyword{}, fmt.Errorf("%w: %q", apperr.ErrUnknownKeyword, name)
	}
	return k, nil
}

// List returns keyword names in insertion order.
func (r *Registry) List() []string {
	r.ns.mu.RLock()
	defer r.ns.mu.RUnlock()
	out := make([]string, len(r.ns.order))
	copy(out, r.ns.order)
	return out
}
