package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/index"
	"github.com/starford/randpic/internal/models"
	"github.com/starford/randpic/internal/storage"
	"github.com/starford/randpic/internal/testutil"
)

func load(t *testing.T) (*Registry, *Aliases, *index.DB, storage.Provider, string) {
	t.Helper()
	root, files := testutil.TestStore(t)
	db := testutil.TestDB(t)
	reg, al, err := Load(context.Background(), db, files)
	require.NoError(t, err)
	return reg, al, db, files, root
}

func TestEnsureExists_Idempotent(t *testing.T) {
	reg, _, _, _, root := load(t)
	ctx := context.Background()

	k1, created, err := reg.EnsureExists(ctx, "capoo")
	require.NoError(t, err)
	assert.True(t, created)
	k2, created, err := reg.EnsureExists(ctx, "capoo")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, k1, k2)
	assert.True(t, reg.Exists("capoo"))
	assert.DirExists(t, filepath.Join(root, "capoo"))
	assert.Equal(t, []string{"capoo"}, reg.List())
}

func TestEnsureExists_InvalidNames(t *testing.T) {
	reg, _, _, _, _ := load(t)
	for _, name := range []string{"", "a/b", `a\b`, "..", ".hidden", " padded "} {
		_, _, err := reg.EnsureExists(context.Background(), name)
		assert.ErrorIs(t, err, apperr.ErrInvalidName, "name %q", name)
	}
}

func TestList_InsertionOrderStable(t *testing.T) {
	reg, _, _, _, _ := load(t)
	ctx := context.Background()
	for _, n := range []string{"zeta", "alpha", "猫"} {
		_, _, err := reg.EnsureExists(ctx, n)
		require.NoError(t, err)
	}
	want := []string{"zeta", "alpha", "猫"}
	assert.Equal(t, want, reg.List())
	assert.Equal(t, want, reg.List())
}

func TestNamespaceDisjointness(t *testing.T) {
	reg, al, _, _, _ := load(t)
	ctx := context.Background()

	_, _, err := reg.EnsureExists(ctx, "cat")
	require.NoError(t, err)

	_, err = al.Register(ctx, "cat", "cat")
	assert.ErrorIs(t, err, apperr.ErrNameConflict, "alias equal to keyword")

	_, err = al.Register(ctx, "neko", "cat")
	require.NoError(t, err)

	_, _, err = reg.EnsureExists(ctx, "neko")
	assert.ErrorIs(t, err, apperr.ErrNameConflict, "keyword equal to alias")

	_, err = al.Register(ctx, "neko", "cat")
	assert.ErrorIs(t, err, apperr.ErrNameConflict, "duplicate alias")
}

func TestRegister_UnknownKeyword(t *testing.T) {
	_, al, _, _, _ := load(t)
	_, err := al.Register(context.Background(), "neko", "cat")
	assert.ErrorIs(t, err, apperr.ErrUnknownKeyword)
}

func TestAliasLifecycle(t *testing.T) {
	reg, al, _, _, _ := load(t)
	ctx := context.Background()
	_, _, err := reg.EnsureExists(ctx, "cat")
	require.NoError(t, err)

	_, err = al.Register(ctx, "neko", "cat")
	require.NoError(t, err)

	got, err := al.Resolve("neko")
	require.NoError(t, err)
	assert.Equal(t, "cat", got)

	require.NoError(t, al.Remove(ctx, "neko"))
	_, err = al.Resolve("neko")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, al.Remove(ctx, "neko"), apperr.ErrNotFound)

	assert.True(t, reg.Exists("cat"), "keyword survives alias removal")
}

func TestLoad_SurvivesRestart(t *testing.T) {
	reg, al, db, files, _ := load(t)
	ctx := context.Background()
	_, _, err := reg.EnsureExists(ctx, "cat")
	require.NoError(t, err)
	_, _, err = reg.EnsureExists(ctx, "dog")
	require.NoError(t, err)
	_, err = al.Register(ctx, "neko", "cat")
	require.NoError(t, err)

	reg2, al2, err := Load(ctx, db, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, reg2.List())
	got, err := al2.Resolve("neko")
	require.NoError(t, err)
	assert.Equal(t, "cat", got)
	assert.Len(t, al2.List(), 1)
}

func TestLoad_RecreatesMissingDirs(t *testing.T) {
	reg, _, db, files, root := load(t)
	_, _, err := reg.EnsureExists(context.Background(), "cat")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "cat")))

	_, _, err = Load(context.Background(), db, files)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "cat"))
}

func TestConcurrentKeywordAndAlias(t *testing.T) {
	reg, al, _, _, _ := load(t)
	ctx := context.Background()
	_, _, err := reg.EnsureExists(ctx, "base")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		name := "x" + string(rune('a'+i))
		var wg sync.WaitGroup
		var kErr, aErr error
		wg.Add(2)
		go func() { defer wg.Done(); _, _, kErr = reg.EnsureExists(ctx, name) }()
		go func() { defer wg.Done(); _, aErr = al.Register(ctx, name, "base") }()
		wg.Wait()

		// Exactly one side wins.
		assert.True(t, (kErr == nil) != (aErr == nil), "name %s: keyword err %v, alias err %v", name, kErr, aErr)
	}
}

func TestEnsureExists_CreatedOnce(t *testing.T) {
	reg, _, _, _, _ := load(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := reg.EnsureExists(ctx, "capoo")
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, created.Load())
}

type failingKeywordIndex struct {
	*index.DB
}

func (failingKeywordIndex) InsertKeyword(context.Context, string, string) (models.Keyword, error) {
	return models.Keyword{}, errors.New("disk full")
}

func TestEnsureExists_IndexFailureRemovesDir(t *testing.T) {
	root, files := testutil.TestStore(t)
	db := testutil.TestDB(t)
	reg, _, err := Load(context.Background(), failingKeywordIndex{db}, files)
	require.NoError(t, err)

	_, created, err := reg.EnsureExists(context.Background(), "capoo")
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.False(t, created)
	assert.False(t, reg.Exists("capoo"))
	assert.NoDirExists(t, filepath.Join(root, "capoo"))

	// A directory that was already there is left alone.
	require.NoError(t, os.Mkdir(filepath.Join(root, "manual"), 0o755))
	_, _, err = reg.EnsureExists(context.Background(), "manual")
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.DirExists(t, filepath.Join(root, "manual"))
}
