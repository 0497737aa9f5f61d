package signal

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/liangshengmoran/Nine-chat-backend/internal/app"
	"github.com/liangshengmoran/Nine-chat-backend/internal/app/orch"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	PublicRoom domain.RoomID
	SendBuffer int
	ReadLimit  int64
	PingPeriod time.Duration
}

type SignalWSController struct {
	Orch      *orch.Orchestrator
	Admission *app.Admission
	Limiter   *MessageRateLimiter
	opts      Options
}

func NewSignalWSController(o *orch.Orchestrator, adm *app.Admission, limiter *MessageRateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &SignalWSController{Orch: o, Admission: adm, Limiter: limiter, opts: opts}
}

// WsSignalConn is the engine-facing side of one websocket. Frames are
// queued on send and written by writePump; Close lets the pump flush what
// is already queued before the socket goes away.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	q := c.Request.URL.Query()
	roomID := ctl.opts.PublicRoom
	if raw := q.Get("room_id"); raw != "" {
		id, _ := strconv.ParseInt(raw, 10, 64)
		roomID = domain.RoomID(id)
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	go ctl.writePump(conn)

	ticket, err := ctl.Admission.Admit(ctx, app.AdmitRequest{
		Token:    q.Get("token"),
		RoomID:   roomID,
		Password: q.Get("room_password"),
		IP:       c.ClientIP(),
	})
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("ip", c.ClientIP()).Int64("room", int64(roomID)).Msg("connection rejected")
		ctl.reject(conn, roomID, err)
		conn.Close()
		return
	}

	ticket.Address = q.Get("address")

	sid := core.SessionID(uuid.NewString())
	if err := ctl.Orch.Join(ctx, ticket, sid, conn); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Int64("user", int64(ticket.User.ID)).
		Int64("room", int64(ticket.Room.ID)).Msg("new WS connection")

	go ctl.readPump(ctx, sid, ticket.User.ID, conn)
}

func (ctl *SignalWSController) reject(conn *WsSignalConn, roomID domain.RoomID, err error) {
	switch {
	case errors.Is(err, core.ErrPasswordRequired):
		ctl.sendJSON(conn, core.EventPasswordRequired, core.PasswordRequired{
			Code:   core.CodePasswordNeeded,
			RoomID: roomID,
			Msg:    "this room requires a password",
		})
	case errors.Is(err, core.ErrPasswordWrong):
		ctl.sendJSON(conn, core.EventTips, core.Tips{Code: core.CodePasswordNeeded, Msg: "wrong room password"})
	case errors.Is(err, core.ErrRoomNotFound):
		ctl.sendJSON(conn, core.EventTips, core.Tips{Code: core.CodeRoomMissing, Msg: "this room does not exist"})
	case errors.Is(err, core.ErrIPBlocked):
		ctl.sendJSON(conn, core.EventAuthFail, core.AuthFail{Code: core.CodeDenied, Msg: "your ip is blocked from the chat"})
	case errors.Is(err, core.ErrBanned):
		ctl.sendJSON(conn, core.EventAuthFail, core.AuthFail{Code: core.CodeDenied, Msg: "your account is banned"})
	case errors.Is(err, core.ErrUserNotFound):
		ctl.sendJSON(conn, core.EventAuthFail, core.AuthFail{Code: core.CodeDenied, Msg: "unknown user"})
	default:
		ctl.sendJSON(conn, core.EventAuthFail, core.AuthFail{Code: core.CodeDenied, Msg: "authentication failed, please sign in again"})
	}
}
