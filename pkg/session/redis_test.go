package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/barunaniket/concierge/planner"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "test:", 0)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore_AppendAndHistory(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	turns := []planner.Turn{
		{Role: planner.RoleUser, Text: "schedule lunch with Jane"},
		{Role: planner.RoleAssistant, Text: "Lunch with Jane is booked."},
		{Role: planner.RoleUser, Text: "move it to friday"},
	}
	for _, turn := range turns {
		if err := store.Append(ctx, "sess-1", turn); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != len(turns) {
		t.Fatalf("History length = %d, want %d", len(got), len(turns))
	}
	for i := range turns {
		if got[i] != turns[i] {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], turns[i])
		}
	}
}

func TestRedisStore_SessionsAreIsolated(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	store.Append(ctx, "sess-1", planner.Turn{Role: planner.RoleUser, Text: "one"})
	store.Append(ctx, "sess-2", planner.Turn{Role: planner.RoleUser, Text: "two"})

	got, err := store.History(ctx, "sess-2")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "two" {
		t.Errorf("sess-2 transcript = %+v, want single 'two' turn", got)
	}
}

func TestRedisStore_UnknownSessionIsEmpty(t *testing.T) {
	_, store := setupMiniredis(t)

	got, err := store.History(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown session transcript = %+v, want empty", got)
	}
}

func TestRedisStore_Clear(t *testing.T) {
	_, store := setupMiniredis(t)
	ctx := context.Background()

	store.Append(ctx, "sess-1", planner.Turn{Role: planner.RoleUser, Text: "one"})
	if err := store.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got, err := store.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("transcript after Clear = %+v, want empty", got)
	}
}

func TestRedisStore_TTLRefreshedOnAppend(t *testing.T) {
	mr, _ := setupMiniredis(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "ttl:", time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	if err := store.Append(ctx, "sess-1", planner.Turn{Role: planner.RoleUser, Text: "one"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if ttl := mr.TTL("ttl:turns:sess-1"); ttl != time.Minute {
		t.Errorf("TTL = %v, want %v", ttl, time.Minute)
	}
}

func TestRedisStore_ClosedStore(t *testing.T) {
	_, store := setupMiniredis(t)
	_ = store.Close()

	if err := store.Append(context.Background(), "s", planner.Turn{}); err != ErrStoreClosed {
		t.Errorf("Append on closed store = %v, want ErrStoreClosed", err)
	}
	if _, err := store.History(context.Background(), "s"); err != ErrStoreClosed {
		t.Errorf("History on closed store = %v, want ErrStoreClosed", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Append(ctx, "sess-1", planner.Turn{Role: planner.RoleUser, Text: "hello"})
	store.Append(ctx, "sess-1", planner.Turn{Role: planner.RoleAssistant, Text: "hi"})

	got, err := store.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("History length = %d, want 2", len(got))
	}

	// The returned slice is a copy; mutating it must not affect the store.
	got[0].Text = "mutated"
	again, _ := store.History(ctx, "sess-1")
	if again[0].Text != "hello" {
		t.Error("History returned a shared slice")
	}

	store.Clear(ctx, "sess-1")
	empty, _ := store.History(ctx, "sess-1")
	if len(empty) != 0 {
		t.Errorf("transcript after Clear = %+v, want empty", empty)
	}

	store.Close()
	if err := store.Append(ctx, "sess-1", planner.Turn{}); err != ErrStoreClosed {
		t.Errorf("Append on closed store = %v, want ErrStoreClosed", err)
	}
}
