package kvstore

import (
	"context"
	"sync"
	"testing"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestMemory_RoundTrip verifies that Set then Get returns the stored value.
func TestMemory_RoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	want := payload{Name: "paris", Count: 3}
	if err := s.Set(ctx, "k1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	ok, err := s.Get(ctx, "k1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get ok = false, want true")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

// TestMemory_GetMissing verifies the (false, nil) miss contract.
func TestMemory_GetMissing(t *testing.T) {
	s := NewMemory()
	var got payload
	ok, err := s.Get(context.Background(), "absent", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get ok = true for absent key, want false")
	}
}

// TestMemory_Delete verifies that Delete removes the key and tolerates
// deleting an absent key.
func TestMemory_Delete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Set(ctx, "k1", payload{Name: "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var got payload
	ok, _ := s.Get(ctx, "k1", &got)
	if ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "k1"); err != nil {
		t.Errorf("Delete absent key: %v, want nil", err)
	}
}

// TestMemory_LastWriterWins verifies overwrite semantics.
func TestMemory_LastWriterWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_ = s.Set(ctx, "k", payload{Count: 1})
	_ = s.Set(ctx, "k", payload{Count: 2})

	var got payload
	if ok, _ := s.Get(ctx, "k", &got); !ok {
		t.Fatal("key missing")
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
}

// TestMemory_Concurrent verifies that concurrent writers and readers do not race.
func TestMemory_Concurrent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "shared", payload{Count: i})
			var got payload
			_, _ = s.Get(ctx, "shared", &got)
		}()
	}
	wg.Wait()
}
