package kvstore

import (
	"context"
	"os"
	"testing"
)

// TestFilesystem_RoundTrip verifies that values survive a Set/Get round trip
// through the on-disk JSON files.
func TestFilesystem_RoundTrip(t *testing.T) {
	s := NewFilesystem(t.TempDir())
	ctx := context.Background()

	want := payload{Name: "london", Count: 7}
	if err := s.Set(ctx, "weather:london-GB", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	ok, err := s.Get(ctx, "weather:london-GB", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != want {
		t.Errorf("Get = (%+v, %v), want (%+v, true)", got, ok, want)
	}
}

// TestFilesystem_GetMissing verifies the miss contract when no file exists.
func TestFilesystem_GetMissing(t *testing.T) {
	s := NewFilesystem(t.TempDir())
	var got payload
	ok, err := s.Get(context.Background(), "nope", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("ok = true for missing file, want false")
	}
}

// TestFilesystem_CorruptFile verifies that a corrupt file reads as absent and
// is removed.
func TestFilesystem_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFilesystem(dir)
	ctx := context.Background()

	path := s.Path("bad")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	var got payload
	ok, err := s.Get(ctx, "bad", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("ok = true for corrupt file, want false")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt file was not removed")
	}
}

// TestFilesystem_Delete verifies removal and tolerance of absent keys.
func TestFilesystem_Delete(t *testing.T) {
	s := NewFilesystem(t.TempDir())
	ctx := context.Background()

	_ = s.Set(ctx, "k", payload{Count: 1})
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var got payload
	if ok, _ := s.Get(ctx, "k", &got); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete absent key: %v, want nil", err)
	}
}

// TestFilesystem_KeySanitization verifies that keys with path separators and
// colons map to flat file names under the root.
func TestFilesystem_KeySanitization(t *testing.T) {
	dir := t.TempDir()
	s := NewFilesystem(dir)
	ctx := context.Background()

	if err := s.Set(ctx, "weather:new york-US", payload{Count: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].IsDir() {
		t.Error("expected a flat file, got a directory")
	}
}
