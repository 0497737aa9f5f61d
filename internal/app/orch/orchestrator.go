package orch

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/app"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/liangshengmoran/Nine-chat-backend/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("orchestrator stopped")

type Config struct {
	CloseDelay      time.Duration
	MusicCooldown   time.Duration
	RecallWindow    time.Duration
	MaxPlayRetry    int
	DefaultDuration time.Duration
	IOTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.CloseDelay <= 0 {
		c.CloseDelay = app.DefaultCloseDelay
	}
	if c.MusicCooldown <= 0 {
		c.MusicCooldown = 8 * time.Second
	}
	if c.RecallWindow <= 0 {
		c.RecallWindow = 2 * time.Minute
	}
	if c.MaxPlayRetry <= 0 {
		c.MaxPlayRetry = 5
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 4 * time.Minute
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 10 * time.Second
	}
	return c
}

// Deps are the external collaborators. Filter and Bot may be nil.
type Deps struct {
	Users      core.UserStore
	Rooms      core.RoomStore
	Moderators core.ModeratorStore
	Messages   core.MessageStore
	Library    core.MusicLibrary
	Filter     core.ContentFilter
	Provider   core.MusicProvider
	Bot        core.BotHook
}

// Orchestrator is the room engine. A single goroutine started by Run owns
// the registry, every room runtime and the cooldown table; everything else
// reaches them by posting tasks.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy

	cfg   Config
	deps  Deps
	clock core.Clock

	mu      sync.Mutex
	tasks   []func()
	notify  chan struct{}
	done    chan struct{}
	stopped bool

	base    context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup

	lastPick map[domain.UserID]time.Time
}

func New(cfg Config, deps Deps, clock core.Clock, policy app.Policy) *Orchestrator {
	if clock == nil {
		clock = core.SystemClock()
	}
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	cfg = cfg.withDefaults()
	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		Registry: app.NewRegistry(),
		Policy:   policy,
		cfg:      cfg,
		deps:     deps,
		clock:    clock,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		base:     base,
		cancel:   cancel,
		lastPick: make(map[domain.UserID]time.Time),
	}
	o.Rooms = app.NewRoomManager(clock, cfg.CloseDelay, o.onRoomIdle)
	return o
}

// Run drains the task queue until ctx is canceled, then closes every
// session and stops every room timer.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Info().Str("module", "orch").Msg("engine started")
	for {
		o.drain()
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case <-o.notify:
		}
	}
}

// Wait blocks until Run has returned and in-flight workers have finished.
func (o *Orchestrator) Wait() {
	<-o.done
	o.workers.Wait()
}

func (o *Orchestrator) drain() {
	for {
		o.mu.Lock()
		batch := o.tasks
		o.tasks = nil
		o.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, task := range batch {
			o.safe(task)
		}
	}
}

func (o *Orchestrator) safe(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Interface("panic", r).Bytes("stack", debug.Stack()).Msg("task panicked")
		}
	}()
	task()
}

func (o *Orchestrator) shutdown() {
	o.mu.Lock()
	o.stopped = true
	o.tasks = nil
	o.mu.Unlock()
	o.cancel()
	for _, s := range o.Registry.All() {
		o.Registry.Unbind(s.ID)
		s.Conn.Close()
	}
	o.Rooms.CloseAll()
	close(o.done)
	log.Info().Str("module", "orch").Msg("engine stopped")
}

// post queues f for the engine goroutine. It never blocks.
func (o *Orchestrator) post(f func()) bool {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return false
	}
	o.tasks = append(o.tasks, f)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true
}

// exec runs f on the engine goroutine and waits for it.
func (o *Orchestrator) exec(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if !o.post(func() {
		defer close(finished)
		f()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}
}

// spawn runs I/O off the engine goroutine with a bounded context.
func (o *Orchestrator) spawn(name string, f func(ctx context.Context)) {
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("module", "orch").Str("worker", name).Interface("panic", r).Msg("worker panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(o.base, o.cfg.IOTimeout)
		defer cancel()
		f(ctx)
	}()
}

func (o *Orchestrator) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.IOTimeout)
}

// ---- fan-out ----

func encode(event string, data any) (core.Frame, error) {
	return json.Marshal(core.Envelope{Type: event, Data: data})
}

func (o *Orchestrator) send(s *app.Session, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	o.fanout([]*app.Session{s}, frame)
}

func (o *Orchestrator) tip(s *app.Session, code int, msg string) {
	o.send(s, core.EventTips, core.Tips{Code: code, Msg: msg})
}

// broadcast sends to every session seated in room id except the one
// given in except.
func (o *Orchestrator) broadcast(id domain.RoomID, event string, data any, except core.SessionID) {
	frame, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	targets := o.Registry.InRoom(id)
	if except != "" {
		kept := targets[:0]
		for _, s := range targets {
			if s.ID != except {
				kept = append(kept, s)
			}
		}
		targets = kept
	}
	o.fanout(targets, frame)
}

func (o *Orchestrator) broadcastAll(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	o.fanout(o.Registry.All(), frame)
}

// fanout delivers frame and accounts for the sessions that refused it.
func (o *Orchestrator) fanout(targets []*app.Session, frame core.Frame) {
	res := o.deliver(targets, frame)
	if len(res.Dropped) == 0 {
		return
	}
	metrics.WsFramesDroppedTotal.Add(float64(len(res.Dropped)))
	log.Debug().Str("module", "orch").Int("sent", res.SendTo).Int("dropped", len(res.Dropped)).Msg("partial delivery")
}

func (o *Orchestrator) deliver(targets []*app.Session, frame core.Frame) core.PublishResult {
	var res core.PublishResult
	for _, s := range targets {
		if err := s.Conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, s.ID)
			o.onBackPressure(s)
			continue
		}
		res.SendTo++
	}
	return res
}

func (o *Orchestrator) onBackPressure(s *app.Session) {
	switch o.Policy.OnBackPressure(s) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Msg("send buffer full, dropping session")
		sid := s.ID
		o.post(func() { o.evict(sid) })
	case app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) roomList(msg string) core.RoomList {
	return core.RoomList{Rooms: o.Rooms.List(), Msg: msg}
}

func (o *Orchestrator) notice(id domain.RoomID, code int, content string) {
	o.broadcast(id, core.EventNotice, core.Notice{Code: code, MessageType: "info", Content: content}, "")
}

func (o *Orchestrator) publish(u core.BotUpdate) {
	if o.deps.Bot == nil {
		return
	}
	o.spawn("bot", func(ctx context.Context) {
		if err := o.deps.Bot.Publish(ctx, u); err != nil {
			log.Warn().Err(err).Str("module", "orch").Int64("room", int64(u.RoomID)).Str("event", u.Event).Msg("bot hook publish failed")
		}
	})
}

// ActiveRooms lists the open rooms.
func (o *Orchestrator) ActiveRooms(ctx context.Context) ([]core.RoomSummary, error) {
	var out []core.RoomSummary
	err := o.exec(ctx, func() { out = o.Rooms.List() })
	return out, err
}

func (o *Orchestrator) refreshGauges() {
	metrics.WsConnections.Set(float64(o.Registry.Count()))
	metrics.ActiveRooms.Set(float64(o.Rooms.Len()))
}
