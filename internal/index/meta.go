package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const metaHash = "hash"

// ErrHashMismatch is returned when the index was built with a different
// content hash than the one requested.
var ErrHashMismatch = errors.New("index: hash algorithm mismatch")

// BindHash records alg as the digest of the images table, or checks it
// against the one already recorded.
func (db *DB) BindHash(ctx context.Context, alg string) error {
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, metaHash, alg); err != nil {
		return fmt.Errorf("index: bind hash: %w", err)
	}
	stored, err := db.meta(ctx, metaHash)
	if err != nil {
		return err
	}
	if stored != alg {
		return fmt.Errorf("%w: index uses %q, configured %q", ErrHashMismatch, stored, alg)
	}
	return nil
}

func (db *DB) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: read meta %s: %w", key, err)
	}
	return v, nil
}
