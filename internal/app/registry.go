package app

import (
	"sync"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Session binds one live connection to a user and the room it joined.
type Session struct {
	ID     core.SessionID
	UserID domain.UserID
	RoomID domain.RoomID
	IP     string
	Conn   core.SignalConnection
}

// Registry is the process-wide session table. It holds at most one session
// per user.
type Registry struct {
	mu     sync.RWMutex
	bySID  map[core.SessionID]*Session
	byUser map[domain.UserID]core.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		bySID:  make(map[core.SessionID]*Session),
		byUser: make(map[domain.UserID]core.SessionID),
	}
}

// Bind registers s and returns the session it superseded, if any.
// The caller is responsible for tearing the previous session down.
func (r *Registry) Bind(s *Session) (prev *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUser[s.UserID]; ok && old != s.ID {
		prev = r.bySID[old]
		delete(r.bySID, old)
	}
	r.bySID[s.ID] = s
	r.byUser[s.UserID] = s.ID
	ev := log.Info().Str("module", "app.registry").Str("sid", string(s.ID)).
		Int64("user", int64(s.UserID)).Int64("room", int64(s.RoomID))
	if prev != nil {
		ev = ev.Str("superseded", string(prev.ID))
	}
	ev.Msg("bound session")
	return prev
}

func (r *Registry) Get(sid core.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySID[sid]
	return s, ok
}

func (r *Registry) ByUser(uid domain.UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[uid]
	if !ok {
		return nil, false
	}
	s, ok := r.bySID[sid]
	return s, ok
}

// Unbind removes sid. Unknown ids are a no-op.
func (r *Registry) Unbind(sid core.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bySID[sid]
	if !ok {
		return nil, false
	}
	delete(r.bySID, sid)
	if r.byUser[s.UserID] == sid {
		delete(r.byUser, s.UserID)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return s, true
}

func (r *Registry) InRoom(id domain.RoomID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, 8)
	for _, s := range r.bySID {
		if s.RoomID == id {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySID))
	for _, s := range r.bySID {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}
