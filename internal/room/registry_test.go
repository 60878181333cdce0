package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyroom-relay/internal/models"
	"studyroom-relay/internal/storage"
)

func TestRegistry_SameIDSameRoom(t *testing.T) {
	g := NewRegistry(storage.NewMemoryProvider(), Options{})
	defer g.Close()

	a, err := g.Get("biology")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := g.Get("biology")
	c, _ := g.Get("chemistry")

	if a != b {
		t.Fatal("expected one room per id")
	}
	if a == c {
		t.Fatal("expected distinct rooms for distinct ids")
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 rooms, got %d", g.Len())
	}
}

func TestRegistry_RoomsAreIsolated(t *testing.T) {
	g := NewRegistry(storage.NewMemoryProvider(), Options{})
	defer g.Close()

	inA, inB := newConn("a"), newConn("b")
	roomA, err := g.Attach(context.Background(), "room-a", inA)
	if err != nil {
		t.Fatal(err)
	}
	roomB, err := g.Attach(context.Background(), "room-b", inB)
	if err != nil {
		t.Fatal(err)
	}

	sendJSON(t, roomA, inA, msg(models.TypeSessionStart, "u1", "Ada", map[string]interface{}{"subject": "Math"}))
	settle(t, roomA)

	sessions, err := g.Sessions(context.Background(), "room-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected room-b unaffected, got %+v", sessions)
	}
	settle(t, roomB)
	if n := len(inB.raw()); n != 0 {
		t.Fatalf("expected no cross-room traffic, got %d frames", n)
	}
}

func TestRegistry_IdleEvictionKeepsDurableState(t *testing.T) {
	g := NewRegistry(storage.NewMemoryProvider(), Options{IdleTimeout: 20 * time.Millisecond})
	defer g.Close()

	admin := newConn("admin")
	r, err := g.Attach(context.Background(), "lobby", admin)
	if err != nil {
		t.Fatal(err)
	}
	sendJSON(t, r, admin, msg(models.TypeAdminAction, "mod", "Moderator", map[string]interface{}{
		"action":       "ban",
		"targetUserId": "u1",
		"permanent":    true,
	}))
	settle(t, r)
	r.Detach(admin)

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle room to stop")
	}
	if g.Len() != 0 {
		t.Fatalf("expected evicted room removed, got %d rooms", g.Len())
	}

	c := newConn("c")
	fresh, err := g.Attach(context.Background(), "lobby", c)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == r {
		t.Fatal("expected a new room after eviction")
	}
	join(t, fresh, c, "u1", "Ada")
	settle(t, fresh)
	if closed, code := c.state(); !closed || code != models.CloseBanned {
		t.Fatalf("expected ban to survive eviction, got closed=%v code=%d", closed, code)
	}
}

func TestRegistry_ReplacesStoppedRoom(t *testing.T) {
	g := NewRegistry(storage.NewMemoryProvider(), Options{})
	defer g.Close()

	stale, _ := g.Get("lobby")
	stale.Stop()

	r, err := g.Attach(context.Background(), "lobby", newConn("c"))
	if err != nil {
		t.Fatalf("expected attach to land on a fresh room, got %v", err)
	}
	if r == stale {
		t.Fatal("expected the stopped room to be replaced")
	}
}

func TestRegistry_CloseStopsRooms(t *testing.T) {
	g := NewRegistry(storage.NewMemoryProvider(), Options{})

	c1, c2 := newConn("c1"), newConn("c2")
	if _, err := g.Attach(context.Background(), "one", c1); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Attach(context.Background(), "two", c2); err != nil {
		t.Fatal(err)
	}

	g.Close()

	for _, c := range []*fakeConn{c1, c2} {
		if closed, code := c.state(); !closed || code != models.CloseGoingAway {
			t.Fatalf("%s: expected close %d, got closed=%v code=%d", c.id, models.CloseGoingAway, closed, code)
		}
	}
	if g.Len() != 0 {
		t.Fatalf("expected no rooms after close, got %d", g.Len())
	}
	if _, err := g.Get("one"); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
}
