package storage

import (
	"context"
	"errors"
	"testing"
)

func TestFileObjectStoreRoundTrip(t *testing.T) {
	store, err := NewFileObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileObjectStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "docs", "processed/a/b.txt", []byte("hello")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "docs", "processed/a/b.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want hello", got)
	}

	if err := store.Put(ctx, "docs", "processed/a/b.txt", []byte{}); err != nil {
		t.Fatalf("overwrite Put() error = %v", err)
	}
	got, _ = store.Get(ctx, "docs", "processed/a/b.txt")
	if len(got) != 0 {
		t.Errorf("overwritten object = %q, want empty", got)
	}
}

func TestFileObjectStoreErrors(t *testing.T) {
	store, err := NewFileObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileObjectStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "docs", "missing.txt"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrObjectNotFound", err)
	}
	if err := store.Put(ctx, "docs", "../../escape.txt", []byte("x")); err == nil {
		t.Error("expected error for key escaping the bucket")
	}
	if _, err := store.Get(ctx, "", "a.txt"); err == nil {
		t.Error("expected error for empty bucket")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.Put(cancelled, "docs", "a.txt", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Put(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestStorageManagerWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	sm, err := NewStorageManager(ctx, &StorageConfig{Backend: BackendFile, Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewStorageManager() error = %v", err)
	}
	defer sm.Close()

	if err := sm.UpdateJobStatus(ctx, &JobUpdate{JobID: "j", Status: "processing"}); err != nil {
		t.Errorf("UpdateJobStatus() without database error = %v", err)
	}
	if _, err := sm.GetJobByID(ctx, "j"); err == nil {
		t.Error("expected error reading jobs without database")
	}
	if err := sm.Put(ctx, "b", "k.txt", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := NewStorageManager(ctx, &StorageConfig{Backend: BackendPostgres}); err == nil {
		t.Error("expected error for postgres backend without DATABASE_URL")
	}
	if _, err := NewStorageManager(ctx, &StorageConfig{Backend: "s3", Root: t.TempDir()}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"a":"x\u0000y","b":"p\u0007q"}`)
	want := `{"a":"xy","b":"p q"}`
	if got := string(sanitizeJSONForPostgres(in)); got != want {
		t.Errorf("sanitizeJSONForPostgres() = %s, want %s", got, want)
	}
}
