// Package dispatch orchestrates trigger resolution, rate limiting, random
// image selection and usage logging.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/models"
)

// Dispatch outcomes reported to the Observer.
const (
	OutcomeDelivered      = "delivered"
	OutcomeUnknownTrigger = "unknown_trigger"
	OutcomeRateLimited    = "rate_limited"
	OutcomeNoImages       = "no_images"
	OutcomeError          = "error"
)

// Event kinds published to the EventSink.
const (
	EventDispatched     = "image.dispatched"
	EventImageAdded     = "image.added"
	EventKeywordCreated = "keyword.created"
	EventAliasCreated   = "alias.created"
	EventAliasRemoved   = "alias.removed"
)

const defaultLedgerTimeout = 5 * time.Second

// Result is a successful dispatch.
type Result struct {
	ID        string       `json:"id"`
	Trigger   string       `json:"trigger"`
	Keyword   string       `json:"keyword"`
	Image     models.Image `json:"image"`
	Remaining int          `json:"remaining"`
}

// AddResult reports whether AddImage stored new content.
type AddResult struct {
	Stored bool         `json:"stored"`
	Image  models.Image `json:"image"`
}

// KeywordStat is a keyword with its image count.
type KeywordStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Engine is the single shared dispatch service handed to every caller.
type Engine struct {
	keywords Keywords
	aliases  AliasIndex
	quota    Quota
	images   Images
	ledger   Ledger

	observer      Observer
	events        EventSink
	logger        *slog.Logger
	ledgerTimeout time.Duration

	pending sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithEvents sets the event sink.
func WithEvents(s EventSink) Option {
	return func(e *Engine) { e.events = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLedgerTimeout bounds each asynchronous ledger write.
func WithLedgerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ledgerTimeout = d
		}
	}
}

// New wires an Engine from its components.
func New(keywords Keywords, aliases AliasIndex, quota Quota, images Images, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		keywords:      keywords,
		aliases:       aliases,
		quota:         quota,
		images:        images,
		ledger:        ledger,
		observer:      nopObserver{},
		events:        nopSink{},
		logger:        slog.Default(),
		ledgerTimeout: defaultLedgerTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve maps a trigger to its keyword, directly or through an alias.
func (e *Engine) Resolve(trigger string) (string, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return "", apperr.ErrUnknownTrigger
	}
	if e.keywords.Exists(trigger) {
		return trigger, nil
	}
	if kw, err := e.aliases.Resolve(trigger); err == nil {
		return kw, nil
	}
	return "", apperr.ErrUnknownTrigger
}

// Dispatch runs one resolve → quota → select → log cycle. Unknown triggers
// cost nothing; an empty collection still costs the token.
func (e *Engine) Dispatch(ctx context.Context, trigger, userID, groupID string) (Result, error) {
	keyword, err := e.Resolve(trigger)
	if err != nil {
		e.observer.DispatchOutcome("", OutcomeUnknownTrigger)
		return Result{}, err
	}

	remaining, ok := e.quota.TryConsume(userID)
	if !ok {
		e.logger.Info("dispatch: rate limited", slog.String("user_id", userID), slog.String("keyword", keyword))
		e.observer.DispatchOutcome(keyword, OutcomeRateLimited)
		return Result{}, fmt.Errorf("%w: user %s", apperr.ErrRateLimited, userID)
	}

	img, err := e.images.PickRandom(ctx, keyword)
	if err != nil {
		if errors.Is(err, apperr.ErrEmptyCollection) {
			e.observer.DispatchOutcome(keyword, OutcomeNoImages)
			return Result{}, fmt.Errorf("%w: %q", apperr.ErrNoImages, keyword)
		}
		e.observer.DispatchOutcome(keyword, OutcomeError)
		return Result{}, err
	}

	id := uuid.NewString()
	e.recordAsync(models.UsageEvent{ID: id, Keyword: keyword, UserID: userID, GroupID: groupID})
	e.observer.DispatchOutcome(keyword, OutcomeDelivered)

	e.events.Publish(EventDispatched, map[string]string{
		"keyword":   keyword,
		"path":      img.Path,
		"user_id":   userID,
		"group_id":  groupID,
		"remaining": strconv.Itoa(remaining),
	})
	return Result{
		ID:        id,
		Trigger:   trigger,
		Keyword:   keyword,
		Image:     img,
		Remaining: remaining,
	}, nil
}

// recordAsync writes the ledger row in the background. Failures are
// logged and counted, never returned.
func (e *Engine) recordAsync(ev models.UsageEvent) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.ledgerTimeout)
		defer cancel()
		if _, err := e.ledger.Append(ctx, ev); err != nil {
			e.logger.Warn("dispatch: usage record failed",
				slog.String("id", ev.ID), slog.String("keyword", ev.Keyword), slog.String("error", err.Error()))
			e.observer.LedgerFailed()
		}
	}()
}

// Wait blocks until pending ledger writes finish.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// AddImage stores data under keyword, creating the keyword if needed.
func (e *Engine) AddImage(ctx context.Context, keyword string, data []byte, nameHint string) (AddResult, error) {
	if _, err := e.CreateKeyword(ctx, keyword); err != nil {
		return AddResult{}, err
	}
	stored, img, err := e.images.PutIfAbsent(ctx, keyword, data, nameHint)
	if err != nil {
		return AddResult{}, err
	}
	e.observer.ImageIngested(keyword, stored)
	if stored {
		e.events.Publish(EventImageAdded, map[string]string{"keyword": keyword, "path": img.Path})
	}
	return AddResult{Stored: stored, Image: img}, nil
}

// CreateKeyword registers keyword if it is new.
func (e *Engine) CreateKeyword(ctx context.Context, name string) (models.Keyword, error) {
	k, created, err := e.keywords.EnsureExists(ctx, name)
	if err != nil {
		return models.Keyword{}, err
	}
	if created {
		e.events.Publish(EventKeywordCreated, map[string]string{"keyword": name})
	}
	return k, nil
}

// RegisterAlias maps alias to keyword.
func (e *Engine) RegisterAlias(ctx context.Context, alias, keyword string) (models.Alias, error) {
	a, err := e.aliases.Register(ctx, alias, keyword)
	if err != nil {
		return models.Alias{}, err
	}
	e.events.Publish(EventAliasCreated, map[string]string{"alias": alias, "keyword": keyword})
	return a, nil
}

// RemoveAlias deletes alias; the keyword and its images stay.
func (e *Engine) RemoveAlias(ctx context.Context, alias string) error {
	if err := e.aliases.Remove(ctx, alias); err != nil {
		return err
	}
	e.events.Publish(EventAliasRemoved, map[string]string{"alias": alias})
	return nil
}

// Aliases lists all aliases.
func (e *Engine) Aliases() []models.Alias {
	return e.aliases.List()
}

// Keywords lists keywords in insertion order with their image counts.
func (e *Engine) Keywords(ctx context.Context) ([]KeywordStat, error) {
	names := e.keywords.List()
	out := make([]KeywordStat, 0, len(names))
	for _, n := range names {
		c, err := e.images.Count(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, KeywordStat{Name: n, Count: c})
	}
	return out, nil
}

// Count returns the number of images in keyword.
func (e *Engine) Count(ctx context.Context, keyword string) (int, error) {
	return e.images.Count(ctx, keyword)
}

// Remaining returns the user's remaining quota.
func (e *Engine) Remaining(userID string) int {
	return e.quota.Remaining(userID)
}

// Usage returns ledger events matching f.
func (e *Engine) Usage(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error) {
	return e.ledger.Query(ctx, f)
}

// UsageCounts aggregates ledger events matching f.
func (e *Engine) UsageCounts(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error) {
	return e.ledger.Counts(ctx, f)
}
