package orch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChooseMusic appends a track to the sender's room queue.
func (o *Orchestrator) ChooseMusic(ctx context.Context, sid core.SessionID, p core.ChooseMusic) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	var result error
	if err := o.exec(ctx, func() {
		s, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		u, _ := rt.FindUser(a.user.ID)
		chooser := *u
		if result = o.enqueue(rt, chooser, a.role, o.cooldownFor(a.role), p.Track); result != nil {
			return
		}
		o.tip(s, core.CodeOK, "song added to the queue")
	}); err != nil {
		return err
	}
	return result
}

func (o *Orchestrator) cooldownFor(role domain.Role) time.Duration {
	switch c := core.MusicCooldown(role); {
	case c < 0:
		return -1
	case c == 0:
		return 0
	default:
		return o.cfg.MusicCooldown
	}
}

// enqueue checks permission, duplicates and cooldown in that order, then
// queues the track. A negative cooldown forbids picking. Engine goroutine
// only.
func (o *Orchestrator) enqueue(rt *core.RoomRuntime, chooser domain.UserSnapshot, role domain.Role, cooldown time.Duration, t domain.Track) error {
	if !core.CanChooseMusic(role) || cooldown < 0 {
		return core.Deny("please sign in to pick songs")
	}
	if rt.Queued(t.MusicID) {
		return core.Invalid("this song is already in the queue")
	}
	now := o.clock.Now()
	if cooldown > 0 {
		if last, ok := o.lastPick[chooser.ID]; ok {
			if elapsed := now.Sub(last); elapsed < cooldown {
				remaining := int(math.Ceil((cooldown - elapsed).Seconds()))
				return &core.Denial{
					Kind:      core.ValidationFailure,
					Msg:       fmt.Sprintf("too many picks, try again in %d seconds", remaining),
					Remaining: remaining,
				}
			}
		}
	}

	if t.Source == "" {
		t.Source = domain.DefaultSource
	}
	if err := rt.Enqueue(domain.QueueItem{Track: t, Chooser: &chooser}); err != nil {
		return core.Invalid("this song is already in the queue")
	}
	o.lastPick[chooser.ID] = now

	o.broadcast(rt.ID(), core.EventChooseMusic, core.QueueUpdate{
		Code:  core.CodeOK,
		Queue: rt.Queue(),
		Msg:   fmt.Sprintf("%s picked %s (%s)", chooser.Nick, t.Name, t.Singer),
	}, "")
	log.Info().Str("module", "orch").Int64("room", int64(rt.ID())).Int64("user", int64(chooser.ID)).
		Str("mid", string(t.MusicID)).Msg("track queued")

	if rt.State() == core.PlaybackIdle {
		o.advance(rt.ID(), 0)
	}
	return nil
}

// CutMusic skips the current track. The chooser is read from room state.
func (o *Orchestrator) CutMusic(ctx context.Context, sid core.SessionID, _ core.CutMusic) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	var result error
	if err := o.exec(ctx, func() {
		_, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		np := rt.NowPlaying()
		if np == nil || rt.State() != core.PlaybackPlaying {
			result = core.Invalid("nothing is playing right now")
			return
		}
		if !core.CanCutMusic(a.role, a.user.ID, np.ChooserID) {
			result = core.Deny("only the room owner or an administrator can skip songs picked by others")
			return
		}
		o.notice(rt.ID(), core.CodeInfo, fmt.Sprintf("%s skipped %s's [%s]", a.user.Nick, np.Singer, np.Name))
		log.Info().Str("module", "orch").Int64("room", int64(rt.ID())).Int64("user", int64(a.user.ID)).
			Str("mid", string(np.MusicID)).Msg("track cut")
		o.advance(rt.ID(), 0)
	}); err != nil {
		return err
	}
	return result
}

// RemoveQueued drops a waiting track. The chooser is read from the queue.
func (o *Orchestrator) RemoveQueued(ctx context.Context, sid core.SessionID, p core.RemoveQueued) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	var result error
	if err := o.exec(ctx, func() {
		s, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		item, ok := rt.FindQueued(p.MusicID)
		if !ok {
			result = core.Invalid("this song is not in the queue")
			return
		}
		if !core.CanRemoveQueued(a.role, a.user.ID, item.ChooserID()) {
			result = core.Deny("only moderators or the room owner can remove songs picked by others")
			return
		}
		rt.RemoveQueued(p.MusicID)
		o.tip(s, core.CodeOK, fmt.Sprintf("removed %s (%s) from the queue", item.Name, item.Singer))
		o.broadcast(rt.ID(), core.EventChooseMusic, core.QueueUpdate{
			Code:  core.CodeOK,
			Queue: rt.Queue(),
			Msg:   fmt.Sprintf("%s removed %s (%s) from the queue", a.user.Nick, item.Name, item.Singer),
		}, "")
	}); err != nil {
		return err
	}
	return result
}

// Kick disconnects another user from the sender's room.
func (o *Orchestrator) Kick(ctx context.Context, sid core.SessionID, p core.KickUser) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	if !core.CanModerate(a.role) {
		return core.Deny("you don't have permission to kick users")
	}
	if p.TargetID == a.user.ID {
		return core.Invalid("you can't kick yourself")
	}
	var result error
	if err := o.exec(ctx, func() {
		_, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		target, ok := rt.FindUser(p.TargetID)
		if !ok {
			result = core.Invalid("that user is not in this room")
			return
		}
		if core.Rank(target.Role) > core.Rank(domain.RoleUser) {
			result = core.Deny("administrators can't be kicked")
			return
		}
		if a.role == domain.RoleModerator && target.ID == rt.Info.OwnerID {
			result = core.Deny("moderators can't kick the room owner")
			return
		}
		nick := target.Nick
		if ts, ok := o.Registry.ByUser(p.TargetID); ok && ts.RoomID == rt.ID() {
			msg := "you were kicked from the room"
			if p.Reason != "" {
				msg = fmt.Sprintf("you were kicked from the room, reason: %s", p.Reason)
			}
			o.send(ts, core.EventKicked, core.Kicked{Code: core.CodeDenied, Msg: msg})
			o.evict(ts.ID)
		}
		o.notice(rt.ID(), core.CodeInfo, fmt.Sprintf("%s was kicked out by %s", nick, a.user.Nick))
		log.Info().Str("module", "orch").Int64("room", int64(rt.ID())).Int64("by", int64(a.user.ID)).
			Int64("target", int64(p.TargetID)).Str("reason", p.Reason).Msg("user kicked")
	}); err != nil {
		return err
	}
	return result
}

// UpdateUserInfo applies profile changes to the sender's live snapshot.
func (o *Orchestrator) UpdateUserInfo(ctx context.Context, sid core.SessionID, p core.UpdateUserInfo) error {
	var result error
	if err := o.exec(ctx, func() {
		s, rt, ok := o.seat(sid)
		if !ok {
			result = core.ErrNoSession
			return
		}
		u, _ := rt.FindUser(s.UserID)
		next := *u
		if p.Nick != nil {
			if err := next.SetNick(*p.Nick); err != nil {
				result = core.Invalid(err.Error())
				return
			}
		}
		if p.Avatar != nil {
			if err := next.SetAvatar(*p.Avatar); err != nil {
				result = core.Invalid(err.Error())
				return
			}
		}
		if p.Sign != nil {
			next.Sign = *p.Sign
		}
		if p.RoomBg != nil {
			next.RoomBg = *p.RoomBg
		}
		*u = next
		o.broadcast(rt.ID(), core.EventOnline, core.Presence{Online: rt.Online()}, "")
	}); err != nil {
		return err
	}
	return result
}

// UpdateRoomInfo edits the live room info and refreshes everyone's room list.
func (o *Orchestrator) UpdateRoomInfo(ctx context.Context, sid core.SessionID, p core.UpdateRoomInfo) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	if !core.CanManageRoom(a.role) {
		return core.Deny("you don't have permission to edit this room")
	}
	return o.exec(ctx, func() {
		_, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		if p.Name != nil {
			rt.Info.Name = *p.Name
		}
		if p.Notice != nil {
			rt.Info.Notice = *p.Notice
		}
		if p.Logo != nil {
			rt.Info.Logo = *p.Logo
		}
		if p.Background != nil {
			rt.Info.Background = *p.Background
		}
		o.broadcastAll(core.EventUpdateRoomlist, o.roomList(fmt.Sprintf("[%s] updated the room info", a.user.Nick)))
	})
}

// ---- bot surface ----

// BotChooseMusic queues a track on behalf of a bot identity. role and
// cooldown come from the caller and are trusted as given.
func (o *Orchestrator) BotChooseMusic(ctx context.Context, roomID domain.RoomID, bot domain.UserSnapshot, role domain.Role, cooldown time.Duration, t domain.Track) error {
	if t.Source == "" {
		t.Source = domain.DefaultSource
	}
	if t.Name == "" && o.deps.Provider != nil {
		ictx, cancel := o.ioContext(ctx)
		if d, err := o.deps.Provider.ResolveMetadata(ictx, t.MusicID, t.Source); err == nil {
			t.Name, t.Singer = d.Name, d.Singer
			t.Album = firstNonEmpty(t.Album, d.Album)
			t.Cover = firstNonEmpty(t.Cover, d.Cover)
		} else {
			log.Warn().Err(err).Str("module", "orch").Str("mid", string(t.MusicID)).Msg("bot pick metadata lookup failed")
		}
		cancel()
	}
	var result error
	if err := o.exec(ctx, func() {
		rt, ok := o.Rooms.Get(roomID)
		if !ok {
			result = core.ErrRoomNotActive
			return
		}
		result = o.enqueue(rt, bot, role, cooldown, t)
	}); err != nil {
		return err
	}
	return result
}
