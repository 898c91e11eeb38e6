// Package catalog holds the keyword registry and the alias index. Both
// share one namespace so that a string is never a keyword and an alias
// at the same time.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/models"
	"github.com/starford/randpic/internal/storage"
)

const (
	maxNameRunes   = 64
	defaultTimeout = 5 * time.Second
)

// namespace is the in-memory write-through cache of keywords and aliases.
type namespace struct {
	mu       sync.RWMutex
	keywords map[string]models.Keyword
	order    []string
	aliases  map[string]models.Alias
}

// Option configures Load.
type Option func(*options)

type options struct {
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout bounds every durable-storage call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Load reads persisted keywords and aliases and returns the registry and
// alias index sharing one namespace. Keyword directories are created if missing.
func Load(ctx context.Context, db index.CatalogIndex, files storage.Provider, opts ...Option) (*Registry, *Aliases, error) {
	o := options{timeout: defaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	kws, err := db.ListKeywords(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: catalog: load keywords: %w", apperr.ErrIO, err)
	}
	als, err := db.ListAliases(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: catalog: load aliases: %w", apperr.ErrIO, err)
	}

	ns := &namespace{
		keywords: make(map[string]models.Keyword, len(kws)),
		aliases:  make(map[string]models.Alias, len(als)),
	}
	for _, k := range kws {
		if _, err := files.Mkdir(k.Dir); err != nil {
			return nil, nil, fmt.Errorf("%w: catalog: %w", apperr.ErrIO, err)
		}
		ns.keywords[k.Name] = k
		ns.order = append(ns.order, k.Name)
	}
	for _, a := range als {
		if _, clash := ns.keywords[a.Alias]; clash {
			o.logger.Warn("catalog: alias shadows keyword, ignoring", slog.String("alias", a.Alias))
			continue
		}
		ns.aliases[a.Alias] = a
	}

	reg := &Registry{ns: ns, db: db, files: files, timeout: o.timeout, logger: o.logger}
	al := &Aliases{ns: ns, db: db, timeout: o.timeout, logger: o.logger}
	return reg, al, nil
}

// ValidateKeyword checks that name can serve as a single directory name.
func ValidateKeyword(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, maxNameRunes),
		validation.By(plainSegment),
	)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// ValidateAlias checks an alias string.
func ValidateAlias(alias string) error {
	err := validation.Validate(alias,
		validation.Required,
		validation.RuneLength(1, maxNameRunes),
		validation.By(trimmed),
	)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", apperr.ErrInvalidName, alias, err)
	}
	return nil
}

func trimmed(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) != s {
		return fmt.Errorf("must not have surrounding whitespace")
	}
	return nil
}

func plainSegment(value any) error {
	if err := trimmed(value); err != nil {
		return err
	}
	s, _ := value.(string)
	switch {
	case strings.ContainsAny(s, `/\`+"\x00"):
		return fmt.Errorf("must not contain path separators")
	case strings.HasPrefix(s, "."):
		return fmt.Errorf("must not start with a dot")
	}
	return nil
}
