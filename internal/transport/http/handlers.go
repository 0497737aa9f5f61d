package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Engine is the slice of the room engine the REST surface drives.
type Engine interface {
	ActiveRooms(ctx context.Context) ([]core.RoomSummary, error)
	BotSendMessage(ctx context.Context, roomID domain.RoomID, bot domain.UserSnapshot, p core.SendMessage) (*core.ChatMessage, error)
	BotChooseMusic(ctx context.Context, roomID domain.RoomID, bot domain.UserSnapshot, role domain.Role, cooldown time.Duration, t domain.Track) error
}

// UpdateSource serves buffered bot updates for long-polling.
type UpdateSource interface {
	Poll(ctx context.Context, id domain.RoomID) ([]json.RawMessage, error)
}

type Handlers struct {
	Engine      Engine
	Auth        core.AuthVerifier
	Users       core.UserStore
	Updates     UpdateSource
	BotCooldown time.Duration
}

const botUserKey = "bot_user"

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, envelope{Code: status, Msg: msg, Data: data})
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.Engine.ActiveRooms(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("list rooms")
		respond(c, http.StatusServiceUnavailable, "engine unavailable", nil)
		return
	}
	respond(c, http.StatusOK, "ok", rooms)
}

// BotAuth accepts a bearer token belonging to an active user with the bot role.
func (h *Handlers) BotAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			respond(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		uid, err := h.Auth.Verify(c.Request.Context(), token)
		if err != nil {
			respond(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}
		u, err := h.Users.GetUser(c.Request.Context(), uid)
		if err != nil || u.Banned() {
			respond(c, http.StatusUnauthorized, "unknown or disabled user", nil)
			c.Abort()
			return
		}
		if u.Role != domain.RoleBot {
			respond(c, http.StatusForbidden, "bot role required", nil)
			c.Abort()
			return
		}
		c.Set(botUserKey, u)
		c.Next()
	}
}

func botUser(c *gin.Context) *domain.User {
	v, _ := c.Get(botUserKey)
	u, _ := v.(*domain.User)
	return u
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond(c, http.StatusBadRequest, "invalid room id", nil)
		return 0, false
	}
	return domain.RoomID(id), true
}

func (h *Handlers) BotSendMessage(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	var req core.SendMessage
	if err := c.ShouldBindJSON(&req); err != nil || req.Validate() != nil {
		respond(c, http.StatusBadRequest, "missing or invalid message", nil)
		return
	}
	u := botUser(c)
	out, err := h.Engine.BotSendMessage(c.Request.Context(), roomID, u.Snapshot(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "ok", out)
}

type chooseMusicRequest struct {
	domain.Track
	Role        domain.Role `json:"role"`
	CooldownSec *int        `json:"cooldown_seconds"`
}

func (h *Handlers) BotChooseMusic(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	var req chooseMusicRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MusicID == "" {
		respond(c, http.StatusBadRequest, "missing or invalid music_mid", nil)
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleBot
	}
	cooldown := h.BotCooldown
	if req.CooldownSec != nil {
		cooldown = time.Duration(*req.CooldownSec) * time.Second
	}
	u := botUser(c)
	if err := h.Engine.BotChooseMusic(c.Request.Context(), roomID, u.Snapshot(), role, cooldown, req.Track); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "song added to the queue", nil)
}

func (h *Handlers) PollUpdates(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	if h.Updates == nil {
		respond(c, http.StatusNotFound, "update queue is not configured", nil)
		return
	}
	items, err := h.Updates.Poll(c.Request.Context(), roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Int64("room", int64(roomID)).Msg("poll updates")
		respond(c, http.StatusServiceUnavailable, "update queue unavailable", nil)
		return
	}
	respond(c, http.StatusOK, "ok", items)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	if d, ok := core.AsDenial(err); ok {
		status := http.StatusBadRequest
		if d.Kind == core.PermissionDenied {
			status = http.StatusForbidden
		}
		c.JSON(status, envelope{Code: status, Msg: d.Msg, Data: gin.H{"remaining_seconds": d.Remaining}})
		return
	}
	if errors.Is(err, core.ErrRoomNotActive) {
		respond(c, http.StatusNotFound, "room is not active", nil)
		return
	}
	log.Error().Err(err).Str("module", "transport.http").Msg("bot request failed")
	respond(c, http.StatusInternalServerError, "internal error", nil)
}
