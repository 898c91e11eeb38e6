package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/randpic/internal/index"
)

func testConfig(t *testing.T, hash string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "images")
	cfg.Store.Hash = hash
	cfg.SQLite.Path = filepath.Join(dir, "randpic.db")
	return cfg
}

func TestBuild_RefusesHashSwitch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "sha256")

	app, err := newApplication([]Option{WithConfig(cfg)}, io.Discard)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	rt, err := build(ctx, app)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	res, err := rt.engine.AddImage(ctx, "meme", []byte("\x89PNG\r\n\x1a\nsame"), "a.png")
	if err != nil || !res.Stored {
		t.Fatalf("AddImage = %+v, %v", res, err)
	}
	rt.close()

	cfg.Store.Hash = "blake3"
	app, err = newApplication([]Option{WithConfig(cfg)}, io.Discard)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	if _, err := build(ctx, app); !errors.Is(err, index.ErrHashMismatch) {
		t.Fatalf("build with blake3 = %v, want ErrHashMismatch", err)
	}

	cfg.Store.Hash = ""
	app, err = newApplication([]Option{WithConfig(cfg)}, io.Discard)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	rt, err = build(ctx, app)
	if err != nil {
		t.Fatalf("build with default hash: %v", err)
	}
	defer rt.close()
	res, err = rt.engine.AddImage(ctx, "meme", []byte("\x89PNG\r\n\x1a\nsame"), "b.png")
	if err != nil || res.Stored {
		t.Fatalf("AddImage after reopen = %+v, %v; want duplicate", res, err)
	}
}
