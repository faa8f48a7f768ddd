package checkpoint

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStateWithIsBoundedFIFO(t *testing.T) {
	s := State{}.With([]string{"1", "2", "3"}, 4)
	s = s.With([]string{"4", "5"}, 4)

	want := []string{"2", "3", "4", "5"}
	if !reflect.DeepEqual(s.Seen, want) {
		t.Errorf("Expected %v, got %v", want, s.Seen)
	}
	if s.Contains("1") {
		t.Error("Expected oldest id to be evicted")
	}
	if !s.Contains("5") {
		t.Error("Expected newest id to be kept")
	}
}

func TestStateWithDoesNotMutateReceiver(t *testing.T) {
	base := State{Seen: []string{"a"}}
	_ = base.With([]string{"b"}, 10)
	if len(base.Seen) != 1 {
		t.Errorf("Expected receiver unchanged, got %v", base.Seen)
	}
}

func TestStateWithZeroCapacity(t *testing.T) {
	s := State{}.With([]string{"1"}, 0)
	if len(s.Seen) != 0 {
		t.Errorf("Expected zero capacity to disable the window, got %v", s.Seen)
	}
}

func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx, "otp")
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(empty.Seen) != 0 {
		t.Errorf("Expected empty state, got %v", empty.Seen)
	}

	if err := store.Save(ctx, "otp", State{Seen: []string{"77", "78"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "otp", State{Seen: []string{"78", "79"}}); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := store.Save(ctx, "other", State{Seen: []string{"1"}}); err != nil {
		t.Fatalf("Save other: %v", err)
	}

	got, err := store.Load(ctx, "otp")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Seen, []string{"78", "79"}) {
		t.Errorf("Expected [78 79], got %v", got.Seen)
	}
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	roundTrip(t, store)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening must not re-run migrations or lose data.
	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(context.Background(), "otp")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if !reflect.DeepEqual(got.Seen, []string{"78", "79"}) {
		t.Errorf("Expected persisted state, got %v", got.Seen)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "test")
	defer store.Close()

	roundTrip(t, store)

	if !mr.Exists("test:checkpoint:otp") {
		t.Error("Expected namespaced key test:checkpoint:otp")
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(Options{Driver: "etcd"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
