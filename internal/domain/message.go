package domain

import "time"

type MessageID int64

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageFile    MessageType = "file"
	MessageEmotion MessageType = "emotion"
	MessageQuote   MessageType = "quote"
)

type MessageStatus int

const (
	MessageNormal       MessageStatus = 1
	MessageRecalled     MessageStatus = -1
	MessageAdminDeleted MessageStatus = -2
)

type Message struct {
	ID             MessageID
	RoomID         RoomID
	UserID         UserID
	Type           MessageType
	Content        string
	QuoteUserID    UserID
	QuoteMessageID MessageID
	Status         MessageStatus
	CreatedAt      time.Time
}
