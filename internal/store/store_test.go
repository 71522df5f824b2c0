package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openAll(t *testing.T) map[string]Storage {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFile(filepath.Join(dir, "nested", "sessions.json"))
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	sqlite, err := NewSQLite(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Storage{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestStorageRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.GetItem(ctx, "k"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}
			if err := s.SetItem(ctx, "k", `{"a":1}`); err != nil {
				t.Fatalf("SetItem failed: %v", err)
			}
			if err := s.SetItem(ctx, "k", `{"a":2}`); err != nil {
				t.Fatalf("SetItem overwrite failed: %v", err)
			}
			v, ok, err := s.GetItem(ctx, "k")
			if err != nil || !ok || v != `{"a":2}` {
				t.Fatalf("GetItem = %q, %v, %v", v, ok, err)
			}
			if err := s.RemoveItem(ctx, "k"); err != nil {
				t.Fatalf("RemoveItem failed: %v", err)
			}
			if err := s.RemoveItem(ctx, "k"); err != nil {
				t.Fatalf("RemoveItem on missing key failed: %v", err)
			}
			if _, ok, _ := s.GetItem(ctx, "k"); ok {
				t.Fatal("expected key to be gone")
			}
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")

	a, _ := NewFile(path)
	if err := a.SetItem(ctx, "contentiq_session_x", "v"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	b, _ := NewFile(path)
	v, ok, err := b.GetItem(ctx, "contentiq_session_x")
	if err != nil || !ok || v != "v" {
		t.Fatalf("GetItem = %q, %v, %v", v, ok, err)
	}
}

func TestFileStoreReportsCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFile(path)
	if _, _, err := s.GetItem(context.Background(), "k"); err == nil {
		t.Fatal("expected an error for a corrupt store file")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open("redis", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	s, err := Open(DriverMemory, "")
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	_ = s.Close()
}

func TestIsLockContention(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5)"), true},
		{errors.New("no such table: widget_storage"), false},
	}
	for _, tc := range cases {
		if got := isLockContention(tc.err); got != tc.want {
			t.Errorf("isLockContention(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
