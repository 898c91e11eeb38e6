// Package usage implements the append-only dispatch ledger.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/models"
)

// Ledger records dispatches and answers filtered queries over them.
type Ledger struct {
	idx   index.UsageIndex
	now   func() time.Time
	newID func() string
}

// New creates a Ledger over idx.
func New(idx index.UsageIndex) *Ledger {
	return &Ledger{
		idx:   idx,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Record appends one event stamped with the current time. Any string is
// accepted; only a storage failure is reported, as ErrIO.
func (l *Ledger) Record(ctx context.Context, keyword, userID, groupID string) (models.UsageEvent, error) {
	return l.Append(ctx, models.UsageEvent{Keyword: keyword, UserID: userID, GroupID: groupID})
}

// Append writes ev, assigning an ID when it has none. The timestamp is
// always the server's.
func (l *Ledger) Append(ctx context.Context, ev models.UsageEvent) (models.UsageEvent, error) {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	ev.CreatedAt = l.now()
	if err := l.idx.InsertUsage(ctx, ev); err != nil {
		return models.UsageEvent{}, fmt.Errorf("%w: usage: %w", apperr.ErrIO, err)
	}
	return ev, nil
}

// Query returns matching events in timestamp order.
func (l *Ledger) Query(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error) {
	out, err := l.idx.QueryUsage(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: usage: %w", apperr.ErrIO, err)
	}
	return out, nil
}

// Counts aggregates matching events per keyword, group and user.
func (l *Ledger) Counts(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error) {
	out, err := l.idx.CountUsage(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: usage: %w", apperr.ErrIO, err)
	}
	return out, nil
}
