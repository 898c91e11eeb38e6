package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/randpic/internal/models"
)

const imageColumns = `keyword, hash, path, size, created_at`

func scanImage(row interface{ Scan(...any) error }) (models.Image, error) {
	var (
		img models.Image
		ts  int64
	)
	if err := row.Scan(&img.Keyword, &img.Hash, &img.Path, &img.Size, &ts); err != nil {
		return models.Image{}, err
	}
	img.CreatedAt = fromUnix(ts)
	return img, nil
}

// lookupImage runs a single-row image query; ok is false when nothing matched.
func (db *DB) lookupImage(ctx context.Context, query string, args ...any) (models.Image, bool, error) {
	img, err := scanImage(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Image{}, false, nil
	}
	if err != nil {
		return models.Image{}, false, fmt.Errorf("index: lookup image: %w", err)
	}
	return img, true, nil
}

// ImageByHash returns the image with hash in keyword.
func (db *DB) ImageByHash(ctx context.Context, keyword, hash string) (models.Image, bool, error) {
	return db.lookupImage(ctx,
		`SELECT `+imageColumns+` FROM images WHERE keyword = ? AND hash = ?`, keyword, hash)
}

// ImageByPath returns the image stored at path.
func (db *DB) ImageByPath(ctx context.Context, path string) (models.Image, bool, error) {
	return db.lookupImage(ctx, `SELECT `+imageColumns+` FROM images WHERE path = ?`, path)
}

// RandomImage returns one image of keyword chosen uniformly at random.
func (db *DB) RandomImage(ctx context.Context, keyword string) (models.Image, bool, error) {
	return db.lookupImage(ctx,
		`SELECT `+imageColumns+` FROM images WHERE keyword = ? ORDER BY RANDOM() LIMIT 1`, keyword)
}

// InsertImage adds an index row.
func (db *DB) InsertImage(ctx context.Context, img models.Image) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?)`,
		img.Keyword, img.Hash, img.Path, img.Size, toUnix(img.CreatedAt))
	if err != nil {
		return fmt.Errorf("index: insert image: %w", err)
	}
	return nil
}

// DeleteImageByPath removes the row that references path.
func (db *DB) DeleteImageByPath(ctx context.Context, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM images WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete image: %w", err)
	}
	return nil
}

// CountImages returns the number of images indexed for keyword.
func (db *DB) CountImages(ctx context.Context, keyword string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM images WHERE keyword = ?`, keyword).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: count images: %w", err)
	}
	return n, nil
}

// ImagePaths returns every indexed path of keyword.
func (db *DB) ImagePaths(ctx context.Context, keyword string) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM images WHERE keyword = ?`, keyword)
	if err != nil {
		return nil, fmt.Errorf("index: image paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}
