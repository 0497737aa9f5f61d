package app

import (
	"sort"
	"sync"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultCloseDelay = 5 * time.Minute

// RoomManager owns the set of open room runtimes and their idle-close timers.
// The runtimes themselves belong to the engine goroutine.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*core.RoomRuntime

	clock      core.Clock
	closeDelay time.Duration
	onIdle     func(id domain.RoomID, gen uint64)
}

// NewRoomManager builds an empty store. onIdle is called from the timer
// goroutine when a close timer fires; it must hand the call back to the
// engine, which then calls CloseIfIdle.
func NewRoomManager(clock core.Clock, closeDelay time.Duration, onIdle func(domain.RoomID, uint64)) *RoomManager {
	if closeDelay <= 0 {
		closeDelay = DefaultCloseDelay
	}
	return &RoomManager{
		rooms:      make(map[domain.RoomID]*core.RoomRuntime),
		clock:      clock,
		closeDelay: closeDelay,
		onIdle:     onIdle,
	}
}

func (m *RoomManager) Get(id domain.RoomID) (*core.RoomRuntime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Ensure returns the runtime for info.ID, creating it when absent.
func (m *RoomManager) Ensure(info domain.Room, owner domain.UserSnapshot) (*core.RoomRuntime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[info.ID]; ok {
		return r, false
	}
	r := core.NewRoomRuntime(info, owner)
	m.rooms[info.ID] = r
	log.Info().Str("module", "app.rooms").Int64("room", int64(info.ID)).Str("name", info.Name).Msg("room opened")
	return r, true
}

// Join cancels a pending close and adds u to the online list.
func (m *RoomManager) Join(r *core.RoomRuntime, u domain.UserSnapshot) {
	if r.CancelClose() {
		log.Info().Str("module", "app.rooms").Int64("room", int64(r.ID())).Msg("close canceled")
	}
	r.AddUser(u)
}

// Leave removes uid from the room and arms the close timer once the room
// is empty. It reports whether the user was online and whether the room is
// now empty.
func (m *RoomManager) Leave(r *core.RoomRuntime, uid domain.UserID) (domain.UserSnapshot, bool, bool) {
	u, ok := r.RemoveUser(uid)
	if !ok {
		return u, false, r.OnlineCount() == 0
	}
	if r.OnlineCount() > 0 {
		return u, true, false
	}
	id := r.ID()
	r.ArmClose(m.clock, m.closeDelay, func(gen uint64) {
		if m.onIdle != nil {
			m.onIdle(id, gen)
		}
	})
	log.Info().Str("module", "app.rooms").Int64("room", int64(id)).Dur("delay", m.closeDelay).Msg("close scheduled")
	return u, true, true
}

// CloseIfIdle tears the room down if gen is still the current close
// generation and nobody came back. It reports whether the room was removed.
func (m *RoomManager) CloseIfIdle(id domain.RoomID, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok || r.CloseGen() != gen || !r.ClosePending() {
		return false
	}
	if r.OnlineCount() > 0 {
		r.CancelClose()
		return false
	}
	r.CancelClose()
	r.SetIdle()
	delete(m.rooms, id)
	log.Info().Str("module", "app.rooms").Int64("room", int64(id)).Msg("room closed")
	return true
}

// CloseAll stops every timer and forgets every room.
func (m *RoomManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.CancelClose()
		r.SetIdle()
		delete(m.rooms, id)
	}
}

// List returns summaries of every open room ordered by id.
func (m *RoomManager) List() []core.RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomSummary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
