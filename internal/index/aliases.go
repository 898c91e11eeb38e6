package index

import (
	"context"
	"fmt"

	"github.com/starford/randpic/internal/models"
)

// InsertAlias persists alias → keyword.
func (db *DB) InsertAlias(ctx context.Context, a models.Alias) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO aliases (alias, keyword, created_at) VALUES (?, ?, ?)`,
		a.Alias, a.Keyword, toUnix(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("index: insert alias: %w", err)
	}
	return nil
}

// DeleteAlias removes alias and reports whether a row existed.
func (db *DB) DeleteAlias(ctx context.Context, alias string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM aliases WHERE alias = ?`, alias)
	if err != nil {
		return false, fmt.Errorf("index: delete alias: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAliases returns all aliases sorted by alias.
func (db *DB) ListAliases(ctx context.Context) ([]models.Alias, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT alias, keyword, created_at FROM aliases ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("index: list aliases: %w", err)
	}
	defer rows.Close()

	var out []models.Alias
	for rows.Next() {
		var (
			a  models.Alias
			ts int64
		)
		if err := rows.Scan(&a.Alias, &a.Keyword, &ts); err != nil {
			return nil, err
		}
		a.CreatedAt = fromUnix(ts)
		out = append(out, a)
	}
	return out, rows.Err()
}
