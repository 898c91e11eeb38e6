package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/randpic/internal/models"
)

// InsertUsage appends one ledger row.
func (db *DB) InsertUsage(ctx context.Context, ev models.UsageEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO usage_log (id, keyword, user_id, group_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Keyword, ev.UserID, ev.GroupID, toUnix(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("index: insert usage: %w", err)
	}
	return nil
}

// usageWhere builds the WHERE clause shared by usage queries.
func usageWhere(f models.UsageFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Keyword != "" {
		conds = append(conds, "keyword = ?")
		args = append(args, f.Keyword)
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.GroupID != "" {
		conds = append(conds, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, toUnix(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, toUnix(f.Until))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QueryUsage returns matching ledger rows ordered by time ascending.
func (db *DB) QueryUsage(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error) {
	where, args := usageWhere(f)
	q := `SELECT id, keyword, user_id, group_id, created_at FROM usage_log` + where + ` ORDER BY created_at, seq`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query usage: %w", err)
	}
	defer rows.Close()

	var out []models.UsageEvent
	for rows.Next() {
		var (
			ev models.UsageEvent
			ts int64
		)
		if err := rows.Scan(&ev.ID, &ev.Keyword, &ev.UserID, &ev.GroupID, &ts); err != nil {
			return nil, err
		}
		ev.CreatedAt = fromUnix(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountUsage aggregates matching rows per keyword, group and user.
func (db *DB) CountUsage(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error) {
	where, args := usageWhere(f)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT keyword, group_id, user_id, count(*)
		FROM usage_log`+where+`
		GROUP BY keyword, group_id, user_id
		ORDER BY keyword, group_id, user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: count usage: %w", err)
	}
	defer rows.Close()

	var out []models.UsageCount
	for rows.Next() {
		var c models.UsageCount
		if err := rows.Scan(&c.Keyword, &c.GroupID, &c.UserID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
