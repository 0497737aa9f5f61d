package core

import (
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackLoading
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackLoading:
		return "loading"
	case PlaybackPlaying:
		return "playing"
	default:
		return "idle"
	}
}

// RoomRuntime is the live state of one open room.
// It is not safe for concurrent use: the orchestrator owns it and mutates it
// from a single goroutine.
type RoomRuntime struct {
	Info  domain.Room
	Owner domain.UserSnapshot

	online []domain.UserSnapshot
	queue  []domain.QueueItem

	nowPlaying *domain.NowPlaying
	state      PlaybackState
	loading    *domain.QueueItem

	closeTimer   Timer
	closeGen     uint64
	advanceTimer Timer
	playGen      uint64
}

func NewRoomRuntime(info domain.Room, owner domain.UserSnapshot) *RoomRuntime {
	return &RoomRuntime{Info: info, Owner: owner}
}

func (r *RoomRuntime) ID() domain.RoomID { return r.Info.ID }

// ---- online users ----

func (r *RoomRuntime) OnlineCount() int { return len(r.online) }

func (r *RoomRuntime) Online() []OnlineUser {
	out := make([]OnlineUser, 0, len(r.online))
	for _, u := range r.online {
		out = append(out, OnlineUser{UserSnapshot: u, IsOwner: u.ID == r.Info.OwnerID})
	}
	return out
}

func (r *RoomRuntime) FindUser(id domain.UserID) (*domain.UserSnapshot, bool) {
	for i := range r.online {
		if r.online[i].ID == id {
			return &r.online[i], true
		}
	}
	return nil, false
}

// AddUser appends u, replacing a stale entry for the same id.
func (r *RoomRuntime) AddUser(u domain.UserSnapshot) {
	if cur, ok := r.FindUser(u.ID); ok {
		*cur = u
		return
	}
	r.online = append(r.online, u)
}

func (r *RoomRuntime) RemoveUser(id domain.UserID) (domain.UserSnapshot, bool) {
	for i, u := range r.online {
		if u.ID == id {
			r.online = append(r.online[:i], r.online[i+1:]...)
			return u, true
		}
	}
	return domain.UserSnapshot{}, false
}

// ---- queue ----

func (r *RoomRuntime) Queue() []domain.QueueItem {
	out := make([]domain.QueueItem, len(r.queue))
	copy(out, r.queue)
	return out
}

func (r *RoomRuntime) QueueLen() int { return len(r.queue) }

func (r *RoomRuntime) FindQueued(id domain.MusicID) (domain.QueueItem, bool) {
	for _, q := range r.queue {
		if q.MusicID == id {
			return q, true
		}
	}
	return domain.QueueItem{}, false
}

// Queued reports whether id is waiting in the queue or currently loading.
func (r *RoomRuntime) Queued(id domain.MusicID) bool {
	if r.loading != nil && r.loading.MusicID == id {
		return true
	}
	_, ok := r.FindQueued(id)
	return ok
}

func (r *RoomRuntime) Enqueue(item domain.QueueItem) error {
	if r.Queued(item.MusicID) {
		return ErrDuplicateItem
	}
	r.queue = append(r.queue, item)
	return nil
}

func (r *RoomRuntime) PopFront() (domain.QueueItem, bool) {
	if len(r.queue) == 0 {
		return domain.QueueItem{}, false
	}
	item := r.queue[0]
	r.queue = r.queue[1:]
	return item, true
}

func (r *RoomRuntime) RemoveQueued(id domain.MusicID) (domain.QueueItem, bool) {
	for i, q := range r.queue {
		if q.MusicID == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return q, true
		}
	}
	return domain.QueueItem{}, false
}

// ---- playback ----

func (r *RoomRuntime) State() PlaybackState { return r.state }

func (r *RoomRuntime) NowPlaying() *domain.NowPlaying { return r.nowPlaying }

func (r *RoomRuntime) PlayGen() uint64 { return r.playGen }

// BeginLoading cancels the advance timer and starts a new playback
// generation. Results carrying an older generation must be dropped.
func (r *RoomRuntime) BeginLoading(item *domain.QueueItem) uint64 {
	r.StopAdvanceTimer()
	r.playGen++
	r.state = PlaybackLoading
	r.loading = item
	return r.playGen
}

func (r *RoomRuntime) SetPlaying(np *domain.NowPlaying, t Timer) {
	r.StopAdvanceTimer()
	r.nowPlaying = np
	r.state = PlaybackPlaying
	r.loading = nil
	r.advanceTimer = t
}

func (r *RoomRuntime) SetIdle() {
	r.StopAdvanceTimer()
	r.playGen++
	r.state = PlaybackIdle
	r.loading = nil
}

func (r *RoomRuntime) StopAdvanceTimer() {
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
		r.advanceTimer = nil
	}
}

// ---- idle close ----

func (r *RoomRuntime) ClosePending() bool { return r.closeTimer != nil }

func (r *RoomRuntime) CloseGen() uint64 { return r.closeGen }

// ArmClose replaces any pending close timer and returns its generation.
func (r *RoomRuntime) ArmClose(clock Clock, d time.Duration, fire func(gen uint64)) uint64 {
	r.CancelClose()
	r.closeGen++
	gen := r.closeGen
	r.closeTimer = clock.AfterFunc(d, func() { fire(gen) })
	return gen
}

// CancelClose stops a pending close timer; a fire already in flight is
// invalidated by the generation bump.
func (r *RoomRuntime) CancelClose() bool {
	if r.closeTimer == nil {
		return false
	}
	r.closeTimer.Stop()
	r.closeTimer = nil
	r.closeGen++
	return true
}

func (r *RoomRuntime) Summary() RoomSummary {
	return RoomSummary{
		RoomID:       r.Info.ID,
		Name:         r.Info.Name,
		Logo:         r.Info.Logo,
		Notice:       r.Info.Notice,
		Background:   r.Info.Background,
		NeedPassword: r.Info.NeedsPassword(),
		Owner:        r.Owner,
		OnlineCount:  len(r.online),
	}
}
