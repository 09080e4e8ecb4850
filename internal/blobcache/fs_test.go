package blobcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_Contract(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "img_cache"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	storeContract(t, s)
}

func TestFileStore_ListSkipsTempFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tmpPrefix+"123"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(context.Background(), "a.png", []byte("x")); err != nil {
		t.Fatal(err)
	}

	names, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "a.png" {
		t.Fatalf("List = %v; want [a.png]", names)
	}
}

func TestFileStore_ListCancelledContext(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.List(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
