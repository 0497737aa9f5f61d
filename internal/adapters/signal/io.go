package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liangshengmoran/Nine-chat-backend/internal/app/orch"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// writePump owns all writes on the socket. It stops once the send channel
// is closed and drained, or on the first write error.
func (ctl *SignalWSController) writePump(c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, uid domain.UserID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		c.Close()
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(uid)
		}
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, sid, uid, c, data)
	}
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, uid domain.UserID, c *WsSignalConn, data []byte) {
	var env inbound
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	var err error
	switch env.Type {
	case core.InPing:
		ctl.handlePing(c)
	case core.InMessage:
		err = ctl.handleMessage(ctx, sid, uid, env.Data)
	case core.InRecallMessage:
		err = ctl.handleRecall(ctx, sid, env.Data)
	case core.InDeleteMessage:
		err = ctl.handleDelete(ctx, sid, env.Data)
	case core.InChooseMusic:
		err = ctl.handleChooseMusic(ctx, sid, env.Data)
	case core.InCutMusic:
		err = ctl.handleCutMusic(ctx, sid, env.Data)
	case core.InRemoveQueued:
		err = ctl.handleRemoveQueued(ctx, sid, env.Data)
	case core.InKickUser:
		err = ctl.handleKick(ctx, sid, env.Data)
	case core.InUpdateUserInfo:
		err = ctl.handleUpdateUserInfo(ctx, sid, env.Data)
	case core.InUpdateRoomInfo:
		err = ctl.handleUpdateRoomInfo(ctx, sid, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		return
	}
	ctl.reply(c, sid, env.Type, err)
}

type validator interface {
	Validate() error
}

// decode unmarshals raw into p and validates it.
func decode[T any, P interface {
	*T
	validator
}](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, core.ErrBadPayload
	}
	if err := P(&v).Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// reply reports a refused action to the sender only.
func (ctl *SignalWSController) reply(c *WsSignalConn, sid core.SessionID, typ string, err error) {
	if err == nil {
		return
	}
	if d, ok := core.AsDenial(err); ok {
		ctl.sendJSON(c, core.EventTips, core.Tips{Code: core.CodeDenied, Msg: d.Msg, Remaining: d.Remaining})
		return
	}
	switch {
	case errors.Is(err, core.ErrBadPayload):
		ctl.sendJSON(c, core.EventTips, core.Tips{Code: core.CodeDenied, Msg: "malformed request"})
	case errors.Is(err, core.ErrNoSession), errors.Is(err, orch.ErrStopped), errors.Is(err, context.Canceled):
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", typ).Msg("dropped")
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", typ).Msg("handler failed")
		ctl.sendJSON(c, core.EventTips, core.Tips{Code: core.CodeDenied, Msg: "something went wrong, please try again"})
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, data any) {
	b, err := json.Marshal(core.Envelope{Type: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
