// Package content implements the content-addressed image store: image
// files under one directory per keyword, indexed by content hash.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/checksum"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/keylock"
	"github.com/starford/randpic/internal/models"
	"github.com/starford/randpic/internal/storage"
)

const defaultTimeout = 5 * time.Second

// Store owns image bytes and the per-keyword hash index. Writes to one
// keyword are serialized; different keywords proceed in parallel.
type Store struct {
	files   storage.Provider
	idx     index.ImageIndex
	hash    checksum.Hasher
	locks   *keylock.Locker
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds every durable-storage call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHasher overrides the content hash (SHA-256 by default).
func WithHasher(h checksum.Hasher) Option {
	return func(s *Store) { s.hash = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over files and idx.
func New(files storage.Provider, idx index.ImageIndex, opts ...Option) *Store {
	s := &Store{
		files:   files,
		idx:     idx,
		hash:    checksum.Sum,
		locks:   keylock.New(),
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: content: %s: %w", apperr.ErrIO, op, err)
}

// PutIfAbsent stores data under keyword unless an image with the same
// content hash is already there. A duplicate returns stored=false and the
// existing image. The file write and the index insert succeed or fail together.
func (s *Store) PutIfAbsent(ctx context.Context, keyword string, data []byte, nameHint string) (bool, models.Image, error) {
	if len(data) == 0 {
		return false, models.Image{}, fmt.Errorf("%w: empty data", apperr.ErrInvalidImage)
	}
	sum := s.hash(data)

	unlock := s.locks.Lock(keyword)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existing, ok, err := s.idx.ImageByHash(ctx, keyword, sum)
	if err != nil {
		return false, models.Image{}, ioErr("lookup", err)
	}
	if ok {
		return false, existing, nil
	}

	img := models.Image{
		Keyword:   keyword,
		Hash:      sum,
		Path:      path.Join(keyword, sum+inferExt(nameHint, data)),
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	if err := ctx.Err(); err != nil {
		return false, models.Image{}, ioErr("write", err)
	}
	if err := s.files.Write(img.Path, data); err != nil {
		return false, models.Image{}, ioErr("write", err)
	}
	if err := s.idx.InsertImage(ctx, img); err != nil {
		if delErr := s.files.Delete(img.Path); delErr != nil {
			s.logger.Error("content: rollback failed",
				slog.String("path", img.Path), slog.String("error", delErr.Error()))
		}
		return false, models.Image{}, ioErr("index", err)
	}
	return true, img, nil
}

// PickRandom returns a uniformly chosen image of keyword, or
// ErrEmptyCollection. Rows whose file has vanished are forgotten and the
// draw is repeated until a live image is found or none are left.
func (s *Store) PickRandom(ctx context.Context, keyword string) (models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		img, ok, err := s.idx.RandomImage(ctx, keyword)
		if err != nil {
			return models.Image{}, ioErr("pick", err)
		}
		if !ok {
			return models.Image{}, apperr.ErrEmptyCollection
		}
		if s.files.Exists(img.Path) {
			return img, nil
		}
		s.logger.Warn("content: indexed file missing", slog.String("path", img.Path))
		forgot, err := s.Forget(ctx, keyword, img.Path)
		if err != nil {
			return models.Image{}, err
		}
		if !forgot {
			// The file came back between the two checks.
			return img, nil
		}
	}
}

// Count returns the number of images in keyword.
func (s *Store) Count(ctx context.Context, keyword string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.idx.CountImages(ctx, keyword)
	if err != nil {
		return 0, ioErr("count", err)
	}
	return n, nil
}

// Open reads the bytes of a stored image.
func (s *Store) Open(img models.Image) ([]byte, error) {
	data, err := s.files.Read(img.Path)
	if err != nil {
		return nil, ioErr("read", err)
	}
	return data, nil
}

// Abs returns the absolute file path of a stored image.
func (s *Store) Abs(img models.Image) (string, error) {
	return s.files.Abs(img.Path)
}

// Adopt indexes a file that appeared under keyword without going through
// PutIfAbsent. A file duplicating an indexed hash is deleted.
func (s *Store) Adopt(ctx context.Context, keyword, relPath string) (bool, error) {
	unlock := s.locks.Lock(keyword)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, ok, err := s.idx.ImageByPath(ctx, relPath); err != nil {
		return false, ioErr("lookup", err)
	} else if ok {
		return false, nil
	}
	data, err := s.files.Read(relPath)
	if err != nil {
		// Gone again before we got the lock.
		return false, nil
	}
	if len(data) == 0 {
		return false, nil
	}
	sum := s.hash(data)
	if existing, ok, err := s.idx.ImageByHash(ctx, keyword, sum); err != nil {
		return false, ioErr("lookup", err)
	} else if ok {
		s.logger.Info("content: removing duplicate file",
			slog.String("path", relPath), slog.String("existing", existing.Path))
		if err := s.files.Delete(relPath); err != nil {
			return false, ioErr("delete duplicate", err)
		}
		return false, nil
	}
	img := models.Image{
		Keyword:   keyword,
		Hash:      sum,
		Path:      relPath,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.idx.InsertImage(ctx, img); err != nil {
		return false, ioErr("index", err)
	}
	return true, nil
}

// Forget drops the index row of a file that no longer exists on disk.
func (s *Store) Forget(ctx context.Context, keyword, relPath string) (bool, error) {
	unlock := s.locks.Lock(keyword)
	defer unlock()

	if s.files.Exists(relPath) {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.idx.DeleteImageByPath(ctx, relPath); err != nil {
		return false, ioErr("forget", err)
	}
	return true, nil
}

// Reconcile makes the index of keyword match its directory: rows of
// missing files are forgotten and unindexed files adopted.
func (s *Store) Reconcile(ctx context.Context, keyword string) (adopted, forgotten int, err error) {
	metas, err := s.files.List(keyword)
	if err != nil {
		return 0, 0, ioErr("list", err)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	indexed, err := s.idx.ImagePaths(lookupCtx, keyword)
	cancel()
	if err != nil {
		return 0, 0, ioErr("paths", err)
	}

	disk := make(map[string]struct{}, len(metas))
	var errs []error
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if _, ok := indexed[m.Path]; ok {
			continue
		}
		ok, err := s.Adopt(ctx, keyword, m.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			adopted++
		}
	}
	for p := range indexed {
		if _, ok := disk[p]; ok {
			continue
		}
		ok, err := s.Forget(ctx, keyword, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			forgotten++
		}
	}
	return adopted, forgotten, errors.Join(errs...)
}
