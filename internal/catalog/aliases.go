package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/models"
)

// Aliases maps alternate trigger strings to keywords. The map is a
// write-through cache of the aliases table.
type Aliases struct {
	ns      *namespace
	db      index.CatalogIndex
	timeout time.Duration
	logger  *slog.Logger
}

// Register maps alias to target.
func (a *Aliases) Register(ctx context.Context, alias, target string) (models.Alias, error) {
	if err := ValidateAlias(alias); err != nil {
		return models.Alias{}, err
	}

	a.ns.mu.Lock()
	defer a.ns.mu.Unlock()

	if _, ok := a.ns.keywords[alias]; ok {
		return models.Alias{}, fmt.Errorf("%w: %q is a keyword", apperr.ErrNameConflict, alias)
	}
	if _, ok := a.ns.aliases[alias]; ok {
		return models.Alias{}, fmt.Errorf("%w: alias %q already exists", apperr.ErrNameConflict, alias)
	}
	if _, ok := a.ns.keywords[target]; !ok {
		return models.Alias{}, fmt.Errorf("%w: %q", apperr.ErrUnknownKeyword, target)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	row := models.Alias{Alias: alias, Keyword: target, CreatedAt: time.Now().UTC()}
	if err := a.db.InsertAlias(ctx, row); err != nil {
		return models.Alias{}, fmt.Errorf("%w: catalog: %w", apperr.ErrIO, err)
	}
	a.ns.aliases[alias] = row
	a.logger.Info("catalog: alias registered", slog.String("alias", alias), slog.String("keyword", target))
	return row, nil
}

// Remove deletes alias. The target keyword is untouched.
func (a *Aliases) Remove(ctx context.Context, alias string) error {
	a.ns.mu.Lock()
	defer a.ns.mu.Unlock()

	if _, ok := a.ns.aliases[alias]; !ok {
		return fmt.Errorf("%w: alias %q", apperr.ErrNotFound, alias)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := a.db.DeleteAlias(ctx, alias); err != nil {
		return fmt.Errorf("%w: catalog: %w", apperr.ErrIO, err)
	}
	delete(a.ns.aliases, alias)
	a.logger.Info("catalog: alias removed", slog.String("alias", alias))
	return nil
}

// Resolve returns the keyword alias points to, or ErrNotFound.
func (a *Aliases) Resolve(alias string) (string, error) {
	a.ns.mu.RLock()
	defer a.ns.mu.RUnlock()
	row, ok := a.ns.aliases[alias]
	if !ok {
		return "", fmt.Errorf("%w: alias %q", apperr.ErrNotFound, alias)
	}
	return row.Keyword, nil
}

// List returns all aliases sorted by alias.
func (a *Aliases) List() []models.Alias {
	a.ns.mu.RLock()
	out := make([]models.Alias, 0, len(a.ns.aliases))
	for _, row := range a.ns.aliases {
		out = append(out, row)
	}
	a.ns.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}
