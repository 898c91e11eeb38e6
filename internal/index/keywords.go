package index

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/randpic/internal/models"
)

// InsertKeyword registers a keyword row if absent and returns the stored row.
func (db *DB) InsertKeyword(ctx context.Context, name, dir string) (models.Keyword, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO keywords (name, dir, created_at) VALUES (?, ?, ?)`,
		name, dir, toUnix(time.Now()))
	if err != nil {
		return models.Keyword{}, fmt.Errorf("index: insert keyword: %w", err)
	}
	var (
		k  models.Keyword
		ts int64
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT seq, name, dir, created_at FROM keywords WHERE name = ?`, name,
	).Scan(&k.Seq, &k.Name, &k.Dir, &ts)
	if err != nil {
		return models.Keyword{}, fmt.Errorf("index: read keyword: %w", err)
	}
	k.CreatedAt = fromUnix(ts)
	return k, nil
}

// ListKeywords returns every keyword in insertion order.
func (db *DB) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT seq, name, dir, created_at FROM keywords ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("index: list keywords: %w", err)
	}
	defer rows.Close()

	var out []models.Keyword
	for rows.Next() {
		var (
			k  models.Keyword
			ts int64
		)
		if err := rows.Scan(&k.Seq, &k.Name, &k.Dir, &ts); err != nil {
			return nil, err
		}
		k.CreatedAt = fromUnix(ts)
		out = append(out, k)
	}
	return out, rows.Err()
}
