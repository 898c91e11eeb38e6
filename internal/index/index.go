package index

import (
	"context"

	"github.com/starford/randpic/internal/models"
)

// ImageIndex is the image half of the index, used by the content store.
type ImageIndex interface {
	ImageByHash(ctx context.Context, keyword, hash string) (models.Image, bool, error)
	ImageByPath(ctx context.Context, path string) (models.Image, bool, error)
	RandomImage(ctx context.Context, keyword string) (models.Image, bool, error)
	InsertImage(ctx context.Context, img models.Image) error
	DeleteImageByPath(ctx context.Context, path string) error
	CountImages(ctx context.Context, keyword string) (int, error)
	ImagePaths(ctx context.Context, keyword string) (map[string]struct{}, error)
}

// CatalogIndex persists keywords and aliases.
type CatalogIndex interface {
	InsertKeyword(ctx context.Context, name, dir string) (models.Keyword, error)
	ListKeywords(ctx context.Context) ([]models.Keyword, error)
	InsertAlias(ctx context.Context, a models.Alias) error
	DeleteAlias(ctx context.Context, alias string) (bool, error)
	ListAliases(ctx context.Context) ([]models.Alias, error)
}

// UsageIndex is the append-only ledger table.
type UsageIndex interface {
	InsertUsage(ctx context.Context, ev models.UsageEvent) error
	QueryUsage(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error)
	CountUsage(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error)
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ ImageIndex   = (*DB)(nil)
	_ CatalogIndex = (*DB)(nil)
	_ UsageIndex   = (*DB)(nil)
)
