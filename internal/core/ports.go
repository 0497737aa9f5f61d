package core

import (
	"context"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
)

// AuthVerifier turns a client token into a user id.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (domain.UserID, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// RoomStore reads persisted room configuration.
type RoomStore interface {
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
}

// ModeratorStore is read-only from the engine.
type ModeratorStore interface {
	ActiveModerators(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	SetMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) error
}

// MusicLibrary is the persisted pool used when a queue runs dry.
// RandomTrack returns (nil, nil) when the library is empty.
type MusicLibrary interface {
	RandomTrack(ctx context.Context) (*domain.Track, error)
	DeleteTrack(ctx context.Context, id domain.MusicID) error
}

type FilterResult struct {
	Text    string
	Blocked bool
}

type ContentFilter interface {
	Filter(ctx context.Context, text string) (FilterResult, error)
}

type IPBlocklist interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// MusicProvider resolves tracks upstream. Both calls may fail independently.
type MusicProvider interface {
	ResolveMetadata(ctx context.Context, id domain.MusicID, source string) (*domain.TrackDetail, error)
	ResolveStreamURL(ctx context.Context, id domain.MusicID, source string) (*domain.StreamInfo, error)
}

// BotUpdate is one event fanned out to bot integrations.
type BotUpdate struct {
	RoomID domain.RoomID `json:"room_id"`
	Event  string        `json:"event"`
	Data   any           `json:"data"`
	At     time.Time     `json:"timestamp"`
}

type BotHook interface {
	Publish(ctx context.Context, u BotUpdate) error
}
