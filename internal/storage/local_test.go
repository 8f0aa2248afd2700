package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	key := ArchiveKey("captures", "alice", "20240101_090000.jpg")
	if err := s.Upload(ctx, key, strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	ok, err := s.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true, nil", ok, err)
	}

	rc, err := s.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "jpeg" {
		t.Errorf("Download() = %q, want %q", data, "jpeg")
	}

	if url := s.GetURL(key); !strings.HasPrefix(url, "file://") {
		t.Errorf("GetURL() = %q, want file:// URL", url)
	}

	if ok, _ := s.Exists(ctx, "captures/bob/missing.jpg"); ok {
		t.Errorf("Exists() of missing object = true")
	}
}

func TestLocalStorageKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}

	path, err := s.resolve("../../etc/passwd")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		t.Errorf("resolve() = %q escapes root %q", path, root)
	}
	if _, err := s.resolve("/"); err == nil {
		t.Errorf("resolve(\"/\") expected error")
	}
}

func TestArchiveKey(t *testing.T) {
	if got := ArchiveKey("exports/", "", "/2024-01-01", "attendance.csv"); got != "exports/2024-01-01/attendance.csv" {
		t.Errorf("ArchiveKey() = %q", got)
	}
}
