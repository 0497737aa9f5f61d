// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxNickLen   = 12
	MaxAvatarLen = 600
)

var (
	ErrNickTooLong   = errors.New("nick too long")
	ErrNickEmpty     = errors.New("nick empty")
	ErrAvatarTooLong = errors.New("avatar url too long")
)

type UserID int64

// SystemUserID marks tracks picked by the scheduler rather than a person.
const SystemUserID UserID = -1

type Role string

const (
	RoleSuper     Role = "super"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
	RoleBot       Role = "bot"
	RoleGuest     Role = "guest"
)

type UserStatus int

const (
	UserBanned   UserStatus = -1
	UserDisabled UserStatus = 0
	UserActive   UserStatus = 1
)

type User struct {
	ID     UserID
	Name   string
	Nick   string
	Email  string
	Avatar string
	Role   Role
	Sign   string
	RoomBg string
	Sex    int
	Status UserStatus
}

// Banned covers both disabled and banned accounts.
func (u *User) Banned() bool { return u.Status <= UserDisabled }

func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:     u.ID,
		Name:   u.Name,
		Nick:   u.Nick,
		Avatar: u.Avatar,
		Role:   u.Role,
		Sign:   u.Sign,
		RoomBg: u.RoomBg,
		Sex:    u.Sex,
	}
}

// UserSnapshot is the public view of a user kept in room state and sent to clients.
type UserSnapshot struct {
	ID     UserID `json:"id"`
	Name   string `json:"user_name,omitempty"`
	Nick   string `json:"user_nick"`
	Avatar string `json:"user_avatar"`
	Role   Role   `json:"user_role"`
	Sign   string `json:"user_sign,omitempty"`
	RoomBg string `json:"user_room_bg,omitempty"`
	Sex    int    `json:"user_sex"`
}

func (u *UserSnapshot) SetNick(nick string) error {
	if len(nick) == 0 {
		return ErrNickEmpty
	}
	if utf8.RuneCountInString(nick) > MaxNickLen {
		return ErrNickTooLong
	}
	u.Nick = nick
	return nil
}

func (u *UserSnapshot) SetAvatar(avatar string) error {
	if len(avatar) > MaxAvatarLen {
		return ErrAvatarTooLong
	}
	u.Avatar = avatar
	return nil
}
