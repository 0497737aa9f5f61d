package core

import (
	"errors"
	"strings"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

// Inbound event names.
const (
	InMessage        = "message"
	InChooseMusic    = "chooseMusic"
	InCutMusic       = "cutMusic"
	InRemoveQueued   = "removeQueuedMusic"
	InRecallMessage  = "recallMessage"
	InKickUser       = "kickUser"
	InDeleteMessage  = "deleteMessage"
	InUpdateUserInfo = "updateUserInfo"
	InUpdateRoomInfo = "updateRoomInfo"
	InPing           = "ping"
)

// Outbound event names.
const (
	EventInitRoom         = "initRoom"
	EventOnline           = "online"
	EventOffline          = "offline"
	EventMessage          = "message"
	EventChooseMusic      = "chooseMusic"
	EventSwitchMusic      = "switchMusic"
	EventRecallMessage    = "recallMessage"
	EventMessageDeleted   = "messageDeleted"
	EventKicked           = "kicked"
	EventTips             = "tips"
	EventNotice           = "notice"
	EventUpdateRoomlist   = "updateRoomlist"
	EventAuthFail         = "authFail"
	EventPasswordRequired = "roomPasswordRequired"
	EventPong             = "pong"
)

// Tip codes carried by tips/authFail payloads.
const (
	CodeOK             = 1
	CodeInfo           = 2
	CodeDenied         = -1
	CodeSuperseded     = -2
	CodeRoomMissing    = -3
	CodePasswordNeeded = -4
)

var ErrBadPayload = errors.New("bad payload")

// Envelope is the wire shape of every event in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Tips struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Remaining int    `json:"remaining_seconds,omitempty"`
}

type Notice struct {
	Code        int    `json:"code"`
	MessageType string `json:"message_type"`
	Content     string `json:"message_content"`
}

type InitRoom struct {
	UserID    domain.UserID       `json:"user_id"`
	StreamURL string              `json:"music_src"`
	Music     *domain.NowPlaying  `json:"music_info"`
	Lyrics    string              `json:"music_lrc"`
	StartTime int                 `json:"music_start_time"`
	Queue     []domain.QueueItem  `json:"music_queue_list"`
	Online    []OnlineUser        `json:"on_line_user_list"`
	Owner     domain.UserSnapshot `json:"room_admin_info"`
	Room      domain.Room         `json:"room_info"`
	RoomList  []RoomSummary       `json:"room_list"`
	Tips      string              `json:"tips"`
	Msg       string              `json:"msg"`
}

// Presence is sent for online, offline and user info changes.
type Presence struct {
	Online []OnlineUser `json:"on_line_user_list"`
	Msg    string       `json:"msg,omitempty"`
}

type QueueUpdate struct {
	Code  int                `json:"code"`
	Queue []domain.QueueItem `json:"music_queue_list"`
	Msg   string             `json:"msg,omitempty"`
}

type SwitchMusic struct {
	Music     *domain.NowPlaying `json:"music_info"`
	StreamURL string             `json:"music_src"`
	Lyrics    string             `json:"music_lrc"`
	Queue     []domain.QueueItem `json:"music_queue_list"`
	Msg       string             `json:"msg"`
}

type SenderInfo struct {
	domain.UserSnapshot
	IsModerator bool `json:"is_moderator"`
}

type QuoteInfo struct {
	MessageID domain.MessageID `json:"quote_message_id"`
	UserID    domain.UserID    `json:"quote_user_id"`
	UserNick  string           `json:"quote_user_nick"`
	Content   string           `json:"quote_message_content"`
	Type      string           `json:"quote_message_type"`
	Status    int              `json:"quote_message_status"`
}

type ChatMessage struct {
	ID        domain.MessageID   `json:"id"`
	RoomID    domain.RoomID      `json:"room_id"`
	Type      domain.MessageType `json:"message_type"`
	Content   string             `json:"message_content"`
	Status    int                `json:"message_status"`
	User      SenderInfo         `json:"user_info"`
	Quote     *QuoteInfo         `json:"quote_info,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// MessageRemoved is used for both recallMessage and messageDeleted.
type MessageRemoved struct {
	Code int              `json:"code"`
	ID   domain.MessageID `json:"id"`
	Msg  string           `json:"msg"`
}

type Kicked struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type RoomList struct {
	Rooms []RoomSummary `json:"room_list"`
	Msg   string        `json:"msg,omitempty"`
}

type AuthFail struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type PasswordRequired struct {
	Code     int           `json:"code"`
	RoomID   domain.RoomID `json:"room_id"`
	RoomName string        `json:"room_name"`
	Msg      string        `json:"msg"`
}

// Inbound payloads. Each one is validated at the transport boundary.

type QuoteRef struct {
	ID       domain.MessageID `json:"id"`
	Content  string           `json:"message_content"`
	Type     string           `json:"message_type"`
	UserID   domain.UserID    `json:"user_id"`
	UserNick string           `json:"user_nick"`
}

type SendMessage struct {
	Type    domain.MessageType `json:"message_type"`
	Content string             `json:"message_content"`
	Quote   *QuoteRef          `json:"quote_message,omitempty"`
}

const maxMessageLen = 10000

func (p *SendMessage) Validate() error {
	if p.Type == "" {
		p.Type = domain.MessageText
	}
	if strings.TrimSpace(p.Content) == "" || len(p.Content) > maxMessageLen {
		return ErrBadPayload
	}
	if p.Quote != nil && p.Quote.ID == 0 {
		p.Quote = nil
	}
	return nil
}

type ChooseMusic struct {
	domain.Track
}

func (p *ChooseMusic) Validate() error {
	if p.MusicID == "" {
		return ErrBadPayload
	}
	if p.Source == "" {
		p.Source = domain.DefaultSource
	}
	return nil
}

// CutMusic carries display fields only; the chooser is read from room state.
type CutMusic struct {
	MusicID domain.MusicID `json:"music_mid"`
	Name    string         `json:"music_name"`
	Singer  string         `json:"music_singer"`
}

func (p *CutMusic) Validate() error { return nil }

type RemoveQueued struct {
	MusicID domain.MusicID `json:"music_mid"`
}

func (p *RemoveQueued) Validate() error {
	if p.MusicID == "" {
		return ErrBadPayload
	}
	return nil
}

type RecallMessage struct {
	ID domain.MessageID `json:"id"`
}

func (p *RecallMessage) Validate() error {
	if p.ID <= 0 {
		return ErrBadPayload
	}
	return nil
}

type KickUser struct {
	TargetID domain.UserID `json:"target_user_id"`
	Reason   string        `json:"reason"`
}

func (p *KickUser) Validate() error {
	if p.TargetID <= 0 {
		return ErrBadPayload
	}
	return nil
}

type DeleteMessage struct {
	ID domain.MessageID `json:"message_id"`
}

func (p *DeleteMessage) Validate() error {
	if p.ID <= 0 {
		return ErrBadPayload
	}
	return nil
}

type UpdateUserInfo struct {
	Nick   *string `json:"user_nick"`
	Avatar *string `json:"user_avatar"`
	Sign   *string `json:"user_sign"`
	RoomBg *string `json:"user_room_bg"`
}

func (p *UpdateUserInfo) Validate() error {
	if p.Nick == nil && p.Avatar == nil && p.Sign == nil && p.RoomBg == nil {
		return ErrBadPayload
	}
	return nil
}

type UpdateRoomInfo struct {
	Name       *string `json:"room_name"`
	Notice     *string `json:"room_notice"`
	Logo       *string `json:"room_logo"`
	Background *string `json:"room_bg_img"`
}

func (p *UpdateRoomInfo) Validate() error {
	if p.Name == nil && p.Notice == nil && p.Logo == nil && p.Background == nil {
		return ErrBadPayload
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrBadPayload
	}
	return nil
}
