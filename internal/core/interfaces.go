package core

import "github.com/liangshengmoran/Nine-chat-backend/internal/domain"

// Frame is a raw encoded event ready for the wire.
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult counts the sessions a frame reached and those that refused it.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// OnlineUser is a member of the online list as clients see it.
type OnlineUser struct {
	domain.UserSnapshot
	IsOwner bool `json:"is_owner"`
}

// RoomSummary is one entry of the active room list.
type RoomSummary struct {
	RoomID       domain.RoomID       `json:"room_id"`
	Name         string              `json:"room_name"`
	Logo         string              `json:"room_logo"`
	Notice       string              `json:"room_notice"`
	Background   string              `json:"room_bg_img"`
	NeedPassword bool                `json:"room_need_password"`
	Owner        domain.UserSnapshot `json:"room_admin_info"`
	OnlineCount  int                 `json:"on_line_nums"`
}
