package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/randpic/internal/catalog"
	"github.com/starford/randpic/internal/content"
	"github.com/starford/randpic/internal/dispatch"
	"github.com/starford/randpic/internal/ratelimit"
	"github.com/starford/randpic/internal/storage"
	"github.com/starford/randpic/internal/testutil"
	"github.com/starford/randpic/internal/usage"
)

var quietLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testEnv(t *testing.T) (string, storage.Provider, *dispatch.Engine) {
	t.Helper()
	root, files := testutil.TestStore(t)
	db := testutil.TestDB(t)
	reg, aliases, err := catalog.Load(context.Background(), db, files)
	require.NoError(t, err)
	e := dispatch.New(reg, aliases, ratelimit.New(1000), content.New(files, db), usage.New(db),
		dispatch.WithLogger(quietLogger))
	t.Cleanup(e.Wait)
	return root, files, e
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func count(t *testing.T, e *dispatch.Engine, kw string) int {
	t.Helper()
	n, err := e.Count(context.Background(), kw)
	require.NoError(t, err)
	return n
}

func startWatch(t *testing.T, files storage.Provider, e *dispatch.Engine, cb EventCallback) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, files, e, quietLogger, cb)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestSync_AdoptsDirectoriesAndFiles(t *testing.T) {
	root, files, e := testEnv(t)
	writeFile(t, filepath.Join(root, "capoo", "a.png"), testutil.PNG("a"))
	writeFile(t, filepath.Join(root, "capoo", "b.png"), testutil.PNG("b"))
	writeFile(t, filepath.Join(root, "capoo", "dup.png"), testutil.PNG("a"))
	writeFile(t, filepath.Join(root, "capoo", ".hidden"), []byte("x"))
	writeFile(t, filepath.Join(root, "empty", ".keep"), nil)
	writeFile(t, filepath.Join(root, ".trash", "c.png"), testutil.PNG("c"))

	require.NoError(t, Sync(context.Background(), files, e, quietLogger))

	kw, err := e.Resolve("capoo")
	require.NoError(t, err)
	assert.Equal(t, "capoo", kw)
	_, err = e.Resolve("empty")
	require.NoError(t, err)
	_, err = e.Resolve(".trash")
	assert.Error(t, err)

	assert.Equal(t, 2, count(t, e, "capoo"))
	assert.Equal(t, 0, count(t, e, "empty"))

	// Exactly one of the two identical files survives.
	_, errA := os.Stat(filepath.Join(root, "capoo", "a.png"))
	_, errDup := os.Stat(filepath.Join(root, "capoo", "dup.png"))
	assert.True(t, (errA == nil) != (errDup == nil))
}

func TestSync_ForgetsMissingFiles(t *testing.T) {
	root, files, e := testEnv(t)
	ctx := context.Background()
	res, err := e.AddImage(ctx, "capoo", testutil.PNG("gone"), "")
	require.NoError(t, err)
	_, err = e.AddImage(ctx, "capoo", testutil.PNG("kept"), "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(res.Image.Path))))
	require.NoError(t, Sync(ctx, files, e, quietLogger))
	assert.Equal(t, 1, count(t, e, "capoo"))
}

func TestSync_Idempotent(t *testing.T) {
	root, files, e := testEnv(t)
	writeFile(t, filepath.Join(root, "capoo", "a.png"), testutil.PNG("a"))

	require.NoError(t, Sync(context.Background(), files, e, quietLogger))
	require.NoError(t, Sync(context.Background(), files, e, quietLogger))

	stats, err := e.Keywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dispatch.KeywordStat{{Name: "capoo", Count: 1}}, stats)
}

func TestWatcher_NewFileAdopted(t *testing.T) {
	root, files, e := testEnv(t)
	_, err := e.CreateKeyword(context.Background(), "capoo")
	require.NoError(t, err)

	var mu sync.Mutex
	var events []string
	startWatch(t, files, e, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	writeFile(t, filepath.Join(root, "capoo", "new.png"), testutil.PNG("new"))

	assert.Eventually(t, func() bool { return count(t, e, "capoo") == 1 },
		5*time.Second, 50*time.Millisecond, "new file not adopted by watcher")
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev == "adopted:capoo/new.png" {
				return true
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond, "expected adopted:capoo/new.png callback")
}

func TestWatcher_NewDirBecomesKeyword(t *testing.T) {
	root, files, e := testEnv(t)
	startWatch(t, files, e, nil)

	require.NoError(t, os.Mkdir(filepath.Join(root, "neko"), 0o755))
	assert.Eventually(t, func() bool {
		_, err := e.Resolve("neko")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "new dir not registered as keyword")

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "neko", "cat.gif"), []byte("GIF89a-cat"))
	assert.Eventually(t, func() bool { return count(t, e, "neko") == 1 },
		5*time.Second, 50*time.Millisecond, "file in new dir not adopted")
}

func TestWatcher_DeleteForgets(t *testing.T) {
	root, files, e := testEnv(t)
	res, err := e.AddImage(context.Background(), "capoo", testutil.PNG("bye"), "")
	require.NoError(t, err)
	startWatch(t, files, e, nil)

	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(res.Image.Path))))
	assert.Eventually(t, func() bool { return count(t, e, "capoo") == 0 },
		5*time.Second, 50*time.Millisecond, "deleted file still indexed")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, files, e := testEnv(t)
	res, err := e.AddImage(context.Background(), "capoo", testutil.PNG("move"), "")
	require.NoError(t, err)
	startWatch(t, files, e, nil)

	oldPath := filepath.Join(root, filepath.FromSlash(res.Image.Path))
	require.NoError(t, os.Rename(oldPath, filepath.Join(root, "capoo", "renamed.png")))

	assert.Eventually(t, func() bool {
		if count(t, e, "capoo") != 1 {
			return false
		}
		img, err := e.Dispatch(context.Background(), "capoo", "watcher-test", "")
		return err == nil && img.Image.Path == "capoo/renamed.png"
	}, 5*time.Second, 100*time.Millisecond, "rename not reconciled")
}

func TestWatcher_OwnWritesAreNoops(t *testing.T) {
	_, files, e := testEnv(t)
	ctx := context.Background()
	_, err := e.CreateKeyword(ctx, "capoo")
	require.NoError(t, err)
	startWatch(t, files, e, nil)

	for _, s := range []string{"1", "2", "3"} {
		_, err := e.AddImage(ctx, "capoo", testutil.PNG(s), "")
		require.NoError(t, err)
	}
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 3, count(t, e, "capoo"))
}
