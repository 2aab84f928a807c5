package conversation_test

import (
	"testing"

	"pedidosbot/internal/conversation"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := conversation.NewMemoryStore()

	if _, ok := store.Get(1); ok {
		t.Fatal("expected no session before start")
	}

	s := store.Start(1, "order-entry", map[string]int{})
	if s.Step != 0 {
		t.Fatalf("new session step = %d, want 0", s.Step)
	}

	store.Advance(1)
	store.Advance(1)
	got, ok := store.Get(1)
	if !ok || got.Step != 2 {
		t.Fatalf("after two advances step = %d, want 2", got.Step)
	}

	store.End(1)
	if _, ok := store.Get(1); ok {
		t.Fatal("expected no session after end")
	}

	// Both are no-ops when the session is absent.
	store.Advance(1)
	store.End(1)
}

func TestMemoryStoreStartOverwrites(t *testing.T) {
	store := conversation.NewMemoryStore()

	old := store.Start(1, "order-entry", "old")
	store.Advance(1)

	fresh := store.Start(1, "collections", "new")
	got, ok := store.Get(1)
	if !ok {
		t.Fatal("expected session after restart")
	}
	if got != fresh || got == old {
		t.Fatal("start did not replace the previous session")
	}
	if got.Flow != "collections" || got.Step != 0 {
		t.Fatalf("restarted session = %q step %d, want collections step 0", got.Flow, got.Step)
	}
}

func TestMemoryStoreChatsAreIsolated(t *testing.T) {
	store := conversation.NewMemoryStore()

	a := store.Start(1, "order-entry", map[string]int{"total": 10})
	b := store.Start(2, "order-entry", map[string]int{"total": 99})

	store.Advance(1)
	store.Advance(1)

	if a.Step != 2 {
		t.Fatalf("chat 1 step = %d, want 2", a.Step)
	}
	if b.Step != 0 {
		t.Fatalf("chat 2 step = %d, want 0", b.Step)
	}
	if b.Data.(map[string]int)["total"] != 99 {
		t.Fatal("chat 2 data changed by chat 1 activity")
	}
}

func TestMemoryStoreSaveDoesNotResurrect(t *testing.T) {
	store := conversation.NewMemoryStore()

	s := store.Start(1, "order-entry", nil)
	store.End(1)
	store.Save(s)

	if _, ok := store.Get(1); ok {
		t.Fatal("save resurrected an ended session")
	}
}
