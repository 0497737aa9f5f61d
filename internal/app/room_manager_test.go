package app

import (
	"testing"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct{ timers []*fakeTimer }

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) core.Timer {
	t := &fakeTimer{fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) live() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type idleCall struct {
	id  domain.RoomID
	gen uint64
}

func newManager() (*RoomManager, *fakeClock, *[]idleCall) {
	clock := &fakeClock{}
	calls := &[]idleCall{}
	m := NewRoomManager(clock, time.Minute, func(id domain.RoomID, gen uint64) {
		*calls = append(*calls, idleCall{id, gen})
	})
	return m, clock, calls
}

func TestRoomManager_EnsureOnce(t *testing.T) {
	m, _, _ := newManager()
	r1, created := m.Ensure(domain.Room{ID: 1, Name: "a"}, domain.UserSnapshot{ID: 9})
	if !created {
		t.Fatal("first Ensure should create")
	}
	r2, created := m.Ensure(domain.Room{ID: 1, Name: "other"}, domain.UserSnapshot{})
	if created || r1 != r2 {
		t.Fatal("second Ensure should return the existing runtime")
	}
	if r2.Info.Name != "a" {
		t.Errorf("room info replaced: %q", r2.Info.Name)
	}
}

func TestRoomManager_LastLeaveClosesAfterDelay(t *testing.T) {
	m, clock, calls := newManager()
	r, _ := m.Ensure(domain.Room{ID: 1}, domain.UserSnapshot{})
	m.Join(r, domain.UserSnapshot{ID: 5, Nick: "a"})
	m.Join(r, domain.UserSnapshot{ID: 6, Nick: "b"})

	if _, removed, empty := m.Leave(r, 5); !removed || empty {
		t.Fatalf("first leave removed=%v empty=%v", removed, empty)
	}
	if r.ClosePending() {
		t.Fatal("close armed while users remain")
	}
	if _, _, empty := m.Leave(r, 6); !empty {
		t.Fatal("room should be empty")
	}
	if !r.ClosePending() || clock.live() != 1 {
		t.Fatalf("expected exactly one pending close timer, got %d", clock.live())
	}

	clock.timers[0].fn()
	if len(*calls) != 1 {
		t.Fatalf("onIdle calls = %d, want 1", len(*calls))
	}
	c := (*calls)[0]
	if !m.CloseIfIdle(c.id, c.gen) {
		t.Fatal("CloseIfIdle should close the idle room")
	}
	if _, ok := m.Get(1); ok {
		t.Error("room still registered after close")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestRoomManager_RejoinCancelsClose(t *testing.T) {
	m, clock, calls := newManager()
	r, _ := m.Ensure(domain.Room{ID: 1}, domain.UserSnapshot{})
	m.Join(r, domain.UserSnapshot{ID: 5})
	m.Leave(r, 5)
	m.Join(r, domain.UserSnapshot{ID: 5})
	m.Leave(r, 5)
	m.Join(r, domain.UserSnapshot{ID: 5})

	if r.ClosePending() {
		t.Fatal("close still pending after rejoin")
	}
	if clock.live() != 0 {
		t.Fatalf("leaked %d live timers", clock.live())
	}

	// a fire that raced the cancel carries a stale generation
	clock.timers[0].fn()
	c := (*calls)[0]
	if m.CloseIfIdle(c.id, c.gen) {
		t.Fatal("stale close fire must not close the room")
	}
	if _, ok := m.Get(1); !ok {
		t.Fatal("room was removed")
	}
}

func TestRoomManager_ListSorted(t *testing.T) {
	m, _, _ := newManager()
	for _, id := range []domain.RoomID{30, 10, 20} {
		r, _ := m.Ensure(domain.Room{ID: id}, domain.UserSnapshot{})
		m.Join(r, domain.UserSnapshot{ID: domain.UserID(id)})
	}
	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
	for i, want := range []domain.RoomID{10, 20, 30} {
		if list[i].RoomID != want || list[i].OnlineCount != 1 {
			t.Errorf("List()[%d] = %+v, want room %d with 1 online", i, list[i], want)
		}
	}
	m.CloseAll()
	if m.Len() != 0 {
		t.Errorf("Len() after CloseAll = %d", m.Len())
	}
}
