package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/liangshengmoran/Nine-chat-backend/internal/metrics"
	"github.com/rs/zerolog/log"
)

// SendMessage persists a chat message and broadcasts it to the sender's room.
func (o *Orchestrator) SendMessage(ctx context.Context, sid core.SessionID, p core.SendMessage) error {
	a, err := o.lookup(ctx, sid)
	if err != nil {
		return err
	}

	ictx, cancel := o.ioContext(ctx)
	defer cancel()

	user, err := o.deps.Users.GetUser(ictx, a.user.ID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", a.user.ID, err)
	}
	if user.Banned() {
		return core.Deny("your account is banned and can't send messages")
	}

	msg, err := o.persist(ictx, a.roomID, a.user.ID, p)
	if err != nil {
		return err
	}
	mods := o.moderators(ctx, a.roomID)

	var out *core.ChatMessage
	if err := o.exec(ctx, func() {
		_, rt, ok := o.reseat(a)
		if !ok {
			return
		}
		sender, _ := rt.FindUser(a.user.ID)
		out = chatMessage(msg, *sender, mods.Has(a.user.ID), p.Quote)
		o.broadcast(rt.ID(), core.EventMessage, out, "")
		metrics.WsMessagesTotal.Inc()
	}); err != nil {
		return err
	}
	if out != nil {
		o.publish(core.BotUpdate{RoomID: a.roomID, Event: core.EventMessage, Data: out, At: msg.CreatedAt})
	}
	return nil
}

// BotSendMessage posts a message from a bot identity into an active room.
func (o *Orchestrator) BotSendMessage(ctx context.Context, roomID domain.RoomID, bot domain.UserSnapshot, p core.SendMessage) (*core.ChatMessage, error) {
	var active bool
	if err := o.exec(ctx, func() {
		_, active = o.Rooms.Get(roomID)
	}); err != nil {
		return nil, err
	}
	if !active {
		return nil, core.ErrRoomNotActive
	}

	ictx, cancel := o.ioContext(ctx)
	defer cancel()
	msg, err := o.persist(ictx, roomID, bot.ID, p)
	if err != nil {
		return nil, err
	}

	var out *core.ChatMessage
	if err := o.exec(ctx, func() {
		if _, ok := o.Rooms.Get(roomID); !ok {
			return
		}
		out = chatMessage(msg, bot, false, p.Quote)
		o.broadcast(roomID, core.EventMessage, out, "")
		metrics.WsMessagesTotal.Inc()
	}); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, core.ErrRoomNotActive
	}
	o.publish(core.BotUpdate{RoomID: roomID, Event: core.EventMessage, Data: out, At: msg.CreatedAt})
	return out, nil
}

// persist filters text content and appends the message to the store.
func (o *Orchestrator) persist(ctx context.Context, roomID domain.RoomID, uid domain.UserID, p core.SendMessage) (*domain.Message, error) {
	content := p.Content
	if p.Type == domain.MessageText {
		filtered, blocked := o.filterText(ctx, content)
		if blocked {
			return nil, core.Deny("your message contains prohibited content")
		}
		content = filtered
	}
	msg := &domain.Message{
		RoomID:    roomID,
		UserID:    uid,
		Type:      p.Type,
		Content:   content,
		Status:    domain.MessageNormal,
		CreatedAt: o.clock.Now(),
	}
	if p.Quote != nil {
		msg.QuoteMessageID = p.Quote.ID
		msg.QuoteUserID = p.Quote.UserID
	}
	if err := o.deps.Messages.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// filterText runs the content filter. A JSON object with a "text" field has
// only that field filtered.
func (o *Orchestrator) filterText(ctx context.Context, content string) (string, bool) {
	if o.deps.Filter == nil {
		return content, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err == nil {
		text, ok := doc["text"].(string)
		if !ok || text == "" {
			return content, false
		}
		res, err := o.deps.Filter.Filter(ctx, text)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("content filter failed")
			return content, false
		}
		if res.Blocked {
			return "", true
		}
		doc["text"] = res.Text
		b, err := json.Marshal(doc)
		if err != nil {
			return content, false
		}
		return string(b), false
	}
	res, err := o.deps.Filter.Filter(ctx, content)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("content filter failed")
		return content, false
	}
	if res.Blocked {
		return "", true
	}
	return res.Text, false
}

func chatMessage(m *domain.Message, sender domain.UserSnapshot, isModerator bool, q *core.QuoteRef) *core.ChatMessage {
	out := &core.ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Type:      m.Type,
		Content:   m.Content,
		Status:    int(m.Status),
		User:      core.SenderInfo{UserSnapshot: sender, IsModerator: isModerator},
		CreatedAt: m.CreatedAt,
	}
	if q != nil && q.UserID != 0 {
		out.Quote = &core.QuoteInfo{
			MessageID: q.ID,
			UserID:    q.UserID,
			UserNick:  q.UserNick,
			Content:   q.Content,
			Type:      q.Type,
			Status:    int(domain.MessageNormal),
		}
	}
	return out
}

// RecallMessage withdraws one of the sender's own recent messages.
func (o *Orchestrator) RecallMessage(ctx context.Context, sid core.SessionID, p core.RecallMessage) error {
	a, err := o.lookup(ctx, sid)
	if err != nil {
		return err
	}
	ictx, cancel := o.ioContext(ctx)
	defer cancel()

	m, err := o.deps.Messages.GetMessage(ictx, p.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Invalid("you can only recall your own messages")
		}
		return fmt.Errorf("get message %d: %w", p.ID, err)
	}
	if m.UserID != a.user.ID || m.RoomID != a.roomID {
		return core.Invalid("you can only recall your own messages")
	}
	if m.Status != domain.MessageNormal {
		return core.Invalid("this message was already removed")
	}
	if o.clock.Now().Sub(m.CreatedAt) > o.cfg.RecallWindow {
		return core.Invalid(fmt.Sprintf("only messages from the last %s can be recalled", o.cfg.RecallWindow))
	}
	if err := o.deps.Messages.SetMessageStatus(ictx, m.ID, domain.MessageRecalled); err != nil {
		return fmt.Errorf("recall message %d: %w", m.ID, err)
	}

	return o.exec(ctx, func() {
		if _, _, ok := o.reseat(a); !ok {
			return
		}
		o.broadcast(a.roomID, core.EventRecallMessage, core.MessageRemoved{
			Code: core.CodeOK,
			ID:   m.ID,
			Msg:  fmt.Sprintf("%s recalled a message", a.user.Nick),
		}, "")
	})
}

// DeleteMessage lets a moderator remove any message in their room.
func (o *Orchestrator) DeleteMessage(ctx context.Context, sid core.SessionID, p core.DeleteMessage) error {
	a, err := o.resolveActor(ctx, sid)
	if err != nil {
		return err
	}
	if !core.CanModerate(a.role) {
		return core.Deny("you don't have permission to delete messages")
	}
	ictx, cancel := o.ioContext(ctx)
	defer cancel()

	m, err := o.deps.Messages.GetMessage(ictx, p.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Invalid("message not found")
		}
		return fmt.Errorf("get message %d: %w", p.ID, err)
	}
	if m.RoomID != a.roomID {
		return core.Invalid("message not found")
	}
	if m.Status != domain.MessageNormal {
		return core.Invalid("this message was already removed")
	}
	if err := o.deps.Messages.SetMessageStatus(ictx, m.ID, domain.MessageAdminDeleted); err != nil {
		return fmt.Errorf("delete message %d: %w", m.ID, err)
	}
	log.Info().Str("module", "orch").Int64("room", int64(a.roomID)).Int64("by", int64(a.user.ID)).
		Int64("message", int64(m.ID)).Msg("message deleted")

	return o.exec(ctx, func() {
		if _, _, ok := o.reseat(a); !ok {
			return
		}
		o.broadcast(a.roomID, core.EventMessageDeleted, core.MessageRemoved{
			Code: core.CodeOK,
			ID:   m.ID,
			Msg:  fmt.Sprintf("%s deleted a message", a.user.Nick),
		}, "")
	})
}
