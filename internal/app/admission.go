package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type AdmitRequest struct {
	Token    string
	RoomID   domain.RoomID
	Password string
	IP       string
}

// Ticket is everything the engine needs to seat an admitted user.
type Ticket struct {
	User  domain.User
	Room  domain.Room
	Owner domain.UserSnapshot
	IP    string

	// Address is the client-reported location shown in presence messages.
	Address string
}

// Admission runs the connect-time checks. It only reads from stores and
// never touches engine state.
type Admission struct {
	Auth  core.AuthVerifier
	Users core.UserStore
	Rooms core.RoomStore
	IPs   core.IPBlocklist
}

func (a *Admission) Admit(ctx context.Context, req AdmitRequest) (*Ticket, error) {
	if req.Token == "" {
		return nil, core.ErrAuthFailed
	}
	uid, err := a.Auth.Verify(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrAuthFailed, err)
	}

	if req.IP != "" && a.IPs != nil {
		blocked, err := a.IPs.IsBlocked(ctx, req.IP)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.admission").Str("ip", req.IP).Msg("ip blocklist lookup failed")
		} else if blocked {
			return nil, core.ErrIPBlocked
		}
	}

	user, err := a.Users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", uid, err)
	}
	if user.Banned() {
		return nil, core.ErrBanned
	}

	room, err := a.Rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room %d: %w", req.RoomID, err)
	}

	if room.NeedsPassword() && room.OwnerID != user.ID && core.Rank(user.Role) < core.Rank(domain.RoleAdmin) {
		if req.Password == "" {
			return nil, core.ErrPasswordRequired
		}
		if !PasswordMatches(room.Password, req.Password) {
			return nil, core.ErrPasswordWrong
		}
	}

	owner := domain.UserSnapshot{ID: room.OwnerID}
	if o, err := a.Users.GetUser(ctx, room.OwnerID); err == nil {
		owner = o.Snapshot()
	}

	return &Ticket{User: *user, Room: *room, Owner: owner, IP: req.IP}, nil
}

// PasswordMatches accepts either a bcrypt hash or a plain stored password.
func PasswordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
