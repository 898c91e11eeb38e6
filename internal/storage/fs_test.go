package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempStore(t)
	content := []byte{0x89, 'P', 'N', 'G'}
	if err := s.Write("cat/a.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("cat/a.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("cat/a.png") {
		t.Error("Exists = false after write")
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("cat/del.jpg", []byte("bye"))
	if err := s.Delete("cat/del.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("cat/del.jpg") {
		t.Error("file still exists after delete")
	}
}

func TestDirsAndList(t *testing.T) {
	s := tempStore(t)
	_ = s.Write("cat/a.jpg", []byte("a"))
	_ = s.Write("cat/b.jpg", []byte("b"))
	_ = s.Write("cat/.hidden", []byte("h"))
	if _, err := s.Mkdir("dog"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := s.Mkdir(".cache"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	dirs, err := s.Dirs()
	if err != nil {
		t.Fatalf("Dirs: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "cat" || dirs[1] != "dog" {
		t.Errorf("dirs = %v, want [cat dog]", dirs)
	}

	items, err := s.List("cat")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Keyword != "cat" || filepath.Dir(filepath.FromSlash(it.Path)) != "cat" {
			t.Errorf("unexpected item %+v", it)
		}
	}

	missing, err := s.List("nope")
	if err != nil || len(missing) != 0 {
		t.Errorf("List(missing) = %v, %v", missing, err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempStore(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.jpg",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Abs(p); err == nil {
			t.Errorf("expected error for Abs(%q)", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempStore(t)
	if err := s.Write("cat/x.jpg", []byte("one")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("cat/x.jpg", []byte("two")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("cat/x.jpg")
	if string(got) != "two" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, "cat", TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "randpic-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
