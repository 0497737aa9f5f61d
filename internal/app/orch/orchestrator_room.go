package orch

import (
	"context"
	"fmt"

	"github.com/liangshengmoran/Nine-chat-backend/internal/app"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join seats an admitted connection. An older session of the same user is
// notified, removed from its room and closed first.
func (o *Orchestrator) Join(ctx context.Context, t *app.Ticket, sid core.SessionID, conn core.SignalConnection) error {
	return o.exec(ctx, func() {
		s := &app.Session{ID: sid, UserID: t.User.ID, RoomID: t.Room.ID, IP: t.IP, Conn: conn}
		if prev := o.Registry.Bind(s); prev != nil {
			o.tip(prev, core.CodeSuperseded, "your account signed in elsewhere, this session was closed")
			o.tip(s, core.CodeDenied, "your account was already online, that session has been replaced")
			o.leaveRoom(prev, sid)
			prev.Conn.Close()
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("old_sid", string(prev.ID)).
				Int64("old_room", int64(prev.RoomID)).Msg("session superseded")
		}

		user := t.User.Snapshot()
		rt, created := o.Rooms.Ensure(t.Room, t.Owner)
		o.Rooms.Join(rt, user)

		where := t.Address
		if where == "" {
			where = t.IP
		}
		online := rt.Online()
		o.send(s, core.EventInitRoom, o.initRoom(rt, user, where))
		o.broadcast(rt.ID(), core.EventOnline, core.Presence{
			Online: online,
			Msg:    fmt.Sprintf("[%s]%s entered the room", user.Nick, from(where)),
		}, sid)

		msg := ""
		if created {
			msg = fmt.Sprintf("%s's room [%s] is now open", rt.Owner.Nick, rt.Info.Name)
		}
		o.broadcastAll(core.EventUpdateRoomlist, o.roomList(msg))
		o.refreshGauges()

		log.Info().Str("module", "orch").Str("sid", string(sid)).Int64("user", int64(user.ID)).
			Int64("room", int64(rt.ID())).Bool("created", created).Msg("joined room")

		if created {
			o.advance(rt.ID(), 0)
		}
	})
}

func from(where string) string {
	if where == "" {
		return ""
	}
	return " from " + where
}

func (o *Orchestrator) initRoom(rt *core.RoomRuntime, u domain.UserSnapshot, where string) core.InitRoom {
	ir := core.InitRoom{
		UserID:   u.ID,
		Queue:    rt.Queue(),
		Online:   rt.Online(),
		Owner:    rt.Owner,
		Room:     rt.Info,
		RoomList: o.Rooms.List(),
		Tips:     fmt.Sprintf("welcome to the room, %s!", u.Nick),
		Msg:      fmt.Sprintf("[%s]%s entered the room", u.Nick, from(where)),
	}
	if np := rt.NowPlaying(); np != nil && rt.State() == core.PlaybackPlaying {
		ir.Music = np
		ir.StreamURL = np.StreamURL
		ir.Lyrics = np.Lyrics
		ir.StartTime = np.Elapsed(o.clock.Now())
	}
	return ir
}

// Disconnect drops the session. Unknown ids are ignored.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.post(func() { o.evict(sid) })
}

func (o *Orchestrator) evict(sid core.SessionID) {
	s, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	o.leaveRoom(s, "")
	s.Conn.Close()
	o.refreshGauges()
}

// leaveRoom takes s's user off its room's online list. The last one out
// arms the close timer instead of triggering an offline broadcast. The
// session except never receives the offline frame.
func (o *Orchestrator) leaveRoom(s *app.Session, except core.SessionID) {
	rt, ok := o.Rooms.Get(s.RoomID)
	if !ok {
		return
	}
	u, removed, empty := o.Rooms.Leave(rt, s.UserID)
	if !removed || empty {
		return
	}
	o.broadcast(rt.ID(), core.EventOffline, core.Presence{
		Online: rt.Online(),
		Msg:    fmt.Sprintf("[%s] left the room", u.Nick),
	}, except)
}

// onRoomIdle runs on the timer goroutine.
func (o *Orchestrator) onRoomIdle(id domain.RoomID, gen uint64) {
	o.post(func() {
		rt, ok := o.Rooms.Get(id)
		if !ok {
			return
		}
		info, owner := rt.Info, rt.Owner
		if !o.Rooms.CloseIfIdle(id, gen) {
			return
		}
		o.broadcastAll(core.EventUpdateRoomlist, o.roomList(
			fmt.Sprintf("[%s]'s room [%s] was closed because everyone left", owner.Nick, info.Name)))
		o.refreshGauges()
	})
}

// actor is a consistent view of a session taken on the engine goroutine.
type actor struct {
	sid    core.SessionID
	user   domain.UserSnapshot
	roomID domain.RoomID
	owner  domain.UserID
	role   domain.Role
	mods   core.ModeratorSet
}

// seat returns the live session and room for sid. Engine goroutine only.
func (o *Orchestrator) seat(sid core.SessionID) (*app.Session, *core.RoomRuntime, bool) {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return nil, nil, false
	}
	rt, ok := o.Rooms.Get(s.RoomID)
	if !ok {
		return nil, nil, false
	}
	if _, ok := rt.FindUser(s.UserID); !ok {
		return nil, nil, false
	}
	return s, rt, true
}

// reseat re-validates a that was captured before an I/O suspension.
func (o *Orchestrator) reseat(a actor) (*app.Session, *core.RoomRuntime, bool) {
	s, rt, ok := o.seat(a.sid)
	if !ok || rt.ID() != a.roomID {
		return nil, nil, false
	}
	return s, rt, true
}

func (o *Orchestrator) lookup(ctx context.Context, sid core.SessionID) (actor, error) {
	var (
		a   actor
		err error
	)
	if xerr := o.exec(ctx, func() {
		s, rt, ok := o.seat(sid)
		if !ok {
			err = core.ErrNoSession
			return
		}
		u, _ := rt.FindUser(s.UserID)
		a = actor{sid: sid, user: *u, roomID: rt.ID(), owner: rt.Info.OwnerID}
	}); xerr != nil {
		return a, xerr
	}
	return a, err
}

// resolveActor looks the session up and resolves its effective role. The
// moderator lookup happens off the engine goroutine.
func (o *Orchestrator) resolveActor(ctx context.Context, sid core.SessionID) (actor, error) {
	a, err := o.lookup(ctx, sid)
	if err != nil {
		return a, err
	}
	a.mods = o.moderators(ctx, a.roomID)
	a.role = core.EffectiveRole(a.user.Role, a.user.ID, a.owner, a.mods)
	return a, nil
}

func (o *Orchestrator) moderators(ctx context.Context, id domain.RoomID) core.ModeratorSet {
	if o.deps.Moderators == nil {
		return core.NewModeratorSet(nil)
	}
	ctx, cancel := o.ioContext(ctx)
	defer cancel()
	ids, err := o.deps.Moderators.ActiveModerators(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Int64("room", int64(id)).Msg("moderator lookup failed")
		return core.NewModeratorSet(nil)
	}
	return core.NewModeratorSet(ids)
}
