package dispatch

import (
	"context"

	"github.com/starford/randpic/internal/models"
)

// Keywords is the keyword registry as seen by the engine.
type Keywords interface {
	EnsureExists(ctx context.Context, name string) (models.Keyword, bool, error)
	Exists(name string) bool
	List() []string
}

// AliasIndex is the alias layer as seen by the engine.
type AliasIndex interface {
	Register(ctx context.Context, alias, target string) (models.Alias, error)
	Remove(ctx context.Context, alias string) error
	Resolve(alias string) (string, error)
	List() []models.Alias
}

// Quota is the per-user rate limiter.
type Quota interface {
	TryConsume(user string) (remaining int, ok bool)
	Remaining(user string) int
}

// Images is the content store.
type Images interface {
	PutIfAbsent(ctx context.Context, keyword string, data []byte, nameHint string) (bool, models.Image, error)
	PickRandom(ctx context.Context, keyword string) (models.Image, error)
	Count(ctx context.Context, keyword string) (int, error)
	Adopt(ctx context.Context, keyword, relPath string) (bool, error)
	Forget(ctx context.Context, keyword, relPath string) (bool, error)
	Reconcile(ctx context.Context, keyword string) (adopted, forgotten int, err error)
}

// Ledger is the usage log.
type Ledger interface {
	Append(ctx context.Context, ev models.UsageEvent) (models.UsageEvent, error)
	Query(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error)
	Counts(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error)
}

// Observer receives engine outcomes, typically for metrics.
type Observer interface {
	DispatchOutcome(keyword, outcome string)
	ImageIngested(keyword string, stored bool)
	LedgerFailed()
}

// EventSink receives state-change notifications, typically for SSE.
type EventSink interface {
	Publish(kind string, data map[string]string)
}

type nopObserver struct{}

func (nopObserver) DispatchOutcome(string, string) {}
func (nopObserver) ImageIngested(string, bool)     {}
func (nopObserver) LedgerFailed()                  {}

type nopSink struct{}

func (nopSink) Publish(string, map[string]string) {}
