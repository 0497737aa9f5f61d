package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/app"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

// ---- clock ----

type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) core.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{d: d, fn: f}
	c.timers = append(c.timers, t)
	return &manualHandle{c: c, t: t}
}

type manualHandle struct {
	c *manualClock
	t *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	was := !h.t.stopped
	h.t.stopped = true
	return was
}

// Fire runs every live timer of length d and reports how many fired.
func (c *manualClock) Fire(d time.Duration) int {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && t.d == d {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

func (c *manualClock) Live(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && t.d == d {
			n++
		}
	}
	return n
}

// ---- connection ----

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) Events(typ string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		var ev wireEvent
		if err := json.Unmarshal(f, &ev); err == nil && ev.Type == typ {
			out = append(out, ev.Data)
		}
	}
	return out
}

func (c *fakeConn) Tips() []core.Tips {
	var out []core.Tips
	for _, raw := range c.Events(core.EventTips) {
		var tp core.Tips
		_ = json.Unmarshal(raw, &tp)
		out = append(out, tp)
	}
	return out
}

func (c *fakeConn) Notices() []string {
	var out []string
	for _, raw := range c.Events(core.EventNotice) {
		var n core.Notice
		_ = json.Unmarshal(raw, &n)
		out = append(out, n.Content)
	}
	return out
}

// ---- stores ----

type memUsers struct {
	mu    sync.Mutex
	users map[domain.UserID]*domain.User
}

func (s *memUsers) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) remove(id domain.UserID) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

func (s *memUsers) setStatus(id domain.UserID, st domain.UserStatus) {
	s.mu.Lock()
	s.users[id].Status = st
	s.mu.Unlock()
}

type memRooms map[domain.RoomID]*domain.Room

func (m memRooms) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	if r, ok := m[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

type memMods map[domain.RoomID][]domain.UserID

func (m memMods) ActiveModerators(_ context.Context, id domain.RoomID) ([]domain.UserID, error) {
	return m[id], nil
}

type memMessages struct {
	mu   sync.Mutex
	next domain.MessageID
	msgs map[domain.MessageID]*domain.Message
}

func (s *memMessages) AppendMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	m.ID = s.next
	cp := *m
	s.msgs[m.ID] = &cp
	return nil
}

func (s *memMessages) GetMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memMessages) SetMessageStatus(_ context.Context, id domain.MessageID, st domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return core.ErrNotFound
	}
	m.Status = st
	return nil
}

func (s *memMessages) status(id domain.MessageID) domain.MessageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[id].Status
}

type memLibrary struct {
	mu      sync.Mutex
	tracks  []domain.Track
	deleted []domain.MusicID
}

func (l *memLibrary) RandomTrack(ctx context.Context) (*domain.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tracks) == 0 {
		return nil, nil
	}
	t := l.tracks[0]
	return &t, nil
}

func (l *memLibrary) DeleteTrack(ctx context.Context, id domain.MusicID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, id)
	kept := l.tracks[:0]
	for _, t := range l.tracks {
		if t.MusicID != id {
			kept = append(kept, t)
		}
	}
	l.tracks = kept
	return nil
}

func (l *memLibrary) Deleted() []domain.MusicID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.MusicID(nil), l.deleted...)
}

type wordFilter struct{ blocked string }

func (f wordFilter) Filter(_ context.Context, text string) (core.FilterResult, error) {
	if f.blocked != "" && text == f.blocked {
		return core.FilterResult{Blocked: true}, nil
	}
	return core.FilterResult{Text: text}, nil
}

const trackSeconds = 200

type fakeProvider struct {
	mu      sync.Mutex
	failing map[domain.MusicID]bool
	hanging map[domain.MusicID]bool
}

func (p *fakeProvider) fails(id domain.MusicID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failing[id]
}

// stall blocks until ctx ends when id is marked as hanging.
func (p *fakeProvider) stall(ctx context.Context, id domain.MusicID) error {
	p.mu.Lock()
	hang := p.hanging[id]
	p.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakeProvider) ResolveMetadata(ctx context.Context, id domain.MusicID, source string) (*domain.TrackDetail, error) {
	if err := p.stall(ctx, id); err != nil {
		return nil, err
	}
	if p.fails(id) {
		return nil, errors.New("upstream 500")
	}
	return &domain.TrackDetail{
		Track:  domain.Track{MusicID: id, Source: source, Name: "song " + string(id), Singer: "singer"},
		Lyrics: "[00:00]la",
	}, nil
}

func (p *fakeProvider) ResolveStreamURL(_ context.Context, id domain.MusicID, _ string) (*domain.StreamInfo, error) {
	if p.fails(id) {
		return nil, errors.New("upstream 500")
	}
	return &domain.StreamInfo{URL: "http://cdn.example/" + string(id) + ".mp3", Duration: trackSeconds}, nil
}

type recordingHook struct {
	mu      sync.Mutex
	updates []core.BotUpdate
}

func (h *recordingHook) Publish(_ context.Context, u core.BotUpdate) error {
	h.mu.Lock()
	h.updates = append(h.updates, u)
	h.mu.Unlock()
	return nil
}

func (h *recordingHook) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.updates)
}

// ---- harness ----

const (
	lobby  domain.RoomID = 888
	locked domain.RoomID = 900

	ownerID domain.UserID = 1
	aliceID domain.UserID = 2
	bobID   domain.UserID = 3
	modID   domain.UserID = 4
	adminID domain.UserID = 5
	guestID domain.UserID = 6
)

type harness struct {
	t        *testing.T
	o        *Orchestrator
	clock    *manualClock
	users    *memUsers
	rooms    memRooms
	messages *memMessages
	library  *memLibrary
	provider *fakeProvider
	hook     *recordingHook
}

func newHarness(t *testing.T, libraryTracks ...domain.Track) *harness {
	t.Helper()
	return newHarnessWith(t, Config{}, libraryTracks...)
}

func newHarnessWith(t *testing.T, cfg Config, libraryTracks ...domain.Track) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: newManualClock(),
		users: &memUsers{users: map[domain.UserID]*domain.User{
			ownerID: {ID: ownerID, Nick: "owner", Role: domain.RoleUser, Status: domain.UserActive},
			aliceID: {ID: aliceID, Nick: "alice", Role: domain.RoleUser, Status: domain.UserActive},
			bobID:   {ID: bobID, Nick: "bob", Role: domain.RoleUser, Status: domain.UserActive},
			modID:   {ID: modID, Nick: "mod", Role: domain.RoleUser, Status: domain.UserActive},
			adminID: {ID: adminID, Nick: "root", Role: domain.RoleAdmin, Status: domain.UserActive},
			guestID: {ID: guestID, Nick: "guest", Role: domain.RoleGuest, Status: domain.UserActive},
		}},
		rooms: memRooms{
			lobby:  {ID: lobby, OwnerID: ownerID, Name: "lobby", PasswordMode: domain.RoomPublic},
			locked: {ID: locked, OwnerID: ownerID, Name: "private", PasswordMode: domain.RoomPassword},
		},
		messages: &memMessages{msgs: make(map[domain.MessageID]*domain.Message)},
		library:  &memLibrary{tracks: libraryTracks},
		provider: &fakeProvider{failing: make(map[domain.MusicID]bool), hanging: make(map[domain.MusicID]bool)},
		hook:     &recordingHook{},
	}
	h.o = New(cfg, Deps{
		Users:      h.users,
		Rooms:      h.rooms,
		Moderators: memMods{lobby: {modID}},
		Messages:   h.messages,
		Library:    h.library,
		Filter:     wordFilter{blocked: "forbidden"},
		Provider:   h.provider,
		Bot:        h.hook,
	}, h.clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go h.o.Run(ctx)
	t.Cleanup(func() {
		cancel()
		h.o.Wait()
	})
	return h
}

func (h *harness) ctx() context.Context { return context.Background() }

// join seats uid in room id and waits until the room is no longer loading.
func (h *harness) join(sid core.SessionID, uid domain.UserID, id domain.RoomID) *fakeConn {
	h.t.Helper()
	u, err := h.users.GetUser(h.ctx(), uid)
	if err != nil {
		h.t.Fatalf("unknown user %d", uid)
	}
	room, err := h.rooms.GetRoom(h.ctx(), id)
	if err != nil {
		h.t.Fatalf("unknown room %d", id)
	}
	owner, _ := h.users.GetUser(h.ctx(), room.OwnerID)
	conn := &fakeConn{}
	ticket := &app.Ticket{User: *u, Room: *room, Owner: owner.Snapshot(), IP: "10.0.0.1"}
	if err := h.o.Join(h.ctx(), ticket, sid, conn); err != nil {
		h.t.Fatalf("Join(%s) error = %v", sid, err)
	}
	h.settle(id)
	return conn
}

// settle waits until room id is not resolving a track.
func (h *harness) settle(id domain.RoomID) {
	h.t.Helper()
	h.waitFor(func() bool {
		rt, ok := h.o.Rooms.Get(id)
		return !ok || rt.State() != core.PlaybackLoading
	})
}

// waitFor polls cond on the engine goroutine until it holds.
func (h *harness) waitFor(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		var ok bool
		if err := h.o.exec(h.ctx(), func() { ok = cond() }); err != nil {
			h.t.Fatalf("exec error = %v", err)
		}
		if ok {
			return
		}
		if time.Now().After(deadline) {
			h.t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// playing reports the music id playing in room id, or "" when not playing.
func (h *harness) playing(id domain.RoomID) domain.MusicID {
	h.t.Helper()
	var mid domain.MusicID
	_ = h.o.exec(h.ctx(), func() {
		rt, ok := h.o.Rooms.Get(id)
		if !ok || rt.State() != core.PlaybackPlaying {
			return
		}
		mid = rt.NowPlaying().MusicID
	})
	return mid
}

func (h *harness) queue(id domain.RoomID) []domain.MusicID {
	h.t.Helper()
	var out []domain.MusicID
	_ = h.o.exec(h.ctx(), func() {
		rt, ok := h.o.Rooms.Get(id)
		if !ok {
			return
		}
		for _, it := range rt.Queue() {
			out = append(out, it.MusicID)
		}
	})
	return out
}

func (h *harness) state(id domain.RoomID) core.PlaybackState {
	h.t.Helper()
	var st core.PlaybackState
	_ = h.o.exec(h.ctx(), func() {
		if rt, ok := h.o.Rooms.Get(id); ok {
			st = rt.State()
		}
	})
	return st
}

func track(id string) domain.Track {
	return domain.Track{MusicID: domain.MusicID(id), Name: "song " + id, Singer: "singer", Source: domain.DefaultSource}
}

func pick(id string) core.ChooseMusic {
	return core.ChooseMusic{Track: track(id)}
}

func wantDenial(t *testing.T, err error, kind core.DenialKind) *core.Denial {
	t.Helper()
	d, ok := core.AsDenial(err)
	if !ok {
		t.Fatalf("error = %v, want denial", err)
	}
	if d.Kind != kind {
		t.Fatalf("denial kind = %d, want %d (%s)", d.Kind, kind, d.Msg)
	}
	return d
}
