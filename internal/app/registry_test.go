package app

import (
	"testing"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
)

type nopConn struct{ closed bool }

func (c *nopConn) TrySend(core.Frame) error { return nil }
func (c *nopConn) Close() { c.closed = true }

func TestRegistry_BindSupersedes(t *testing.T) {
	r := NewRegistry()
	first := &Session{ID: "s1", UserID: 1, RoomID: 10, Conn: &nopConn{}}
	if prev := r.Bind(first); prev != nil {
		t.Fatalf("first Bind returned %v, want nil", prev.ID)
	}
	second := &Session{ID: "s2", UserID: 1, RoomID: 20, Conn: &nopConn{}}
	prev := r.Bind(second)
	if prev == nil || prev.ID != "s1" {
		t.Fatalf("second Bind prev = %v, want s1", prev)
	}
	if _, ok := r.Get("s1"); ok {
		t.Error("superseded session still registered")
	}
	if s, ok := r.ByUser(1); !ok || s.ID != "s2" {
		t.Errorf("ByUser(1) = %v, want s2", s)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_UnbindStale(t *testing.T) {
	r := NewRegistry()
	r.Bind(&Session{ID: "s1", UserID: 1, RoomID: 10, Conn: &nopConn{}})
	r.Bind(&Session{ID: "s2", UserID: 1, RoomID: 10, Conn: &nopConn{}})

	if _, ok := r.Unbind("s1"); ok {
		t.Fatal("Unbind of superseded sid should be a no-op")
	}
	if s, ok := r.ByUser(1); !ok || s.ID != "s2" {
		t.Fatal("stale Unbind must not drop the live session")
	}
	if _, ok := r.Unbind("s2"); !ok {
		t.Fatal("Unbind(s2) should succeed")
	}
	if _, ok := r.ByUser(1); ok {
		t.Error("user index not cleared")
	}
	if _, ok := r.Unbind("missing"); ok {
		t.Error("Unbind of unknown sid should be a no-op")
	}
}

func TestRegistry_InRoom(t *testing.T) {
	r := NewRegistry()
	r.Bind(&Session{ID: "a", UserID: 1, RoomID: 10, Conn: &nopConn{}})
	r.Bind(&Session{ID: "b", UserID: 2, RoomID: 10, Conn: &nopConn{}})
	r.Bind(&Session{ID: "c", UserID: 3, RoomID: 20, Conn: &nopConn{}})

	if got := len(r.InRoom(10)); got != 2 {
		t.Errorf("InRoom(10) = %d sessions, want 2", got)
	}
	if got := len(r.InRoom(30)); got != 0 {
		t.Errorf("InRoom(30) = %d sessions, want 0", got)
	}
	if got := len(r.All()); got != 3 {
		t.Errorf("All() = %d sessions, want 3", got)
	}
}
