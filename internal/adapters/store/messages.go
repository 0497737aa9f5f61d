package store

import (
	"context"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"gorm.io/gorm"
)

type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage inserts m and fills in its id.
func (r *MessageRepo) AppendMessage(ctx context.Context, m *domain.Message) error {
	row := Message{
		UserID:         int64(m.UserID),
		RoomID:         int64(m.RoomID),
		MessageContent: m.Content,
		MessageType:    string(m.Type),
		QuoteUserID:    int64(m.QuoteUserID),
		QuoteMessageID: int64(m.QuoteMessageID),
		MessageStatus:  int(m.Status),
		CreatedAt:      m.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	m.ID = domain.MessageID(row.ID)
	m.CreatedAt = row.CreatedAt
	return nil
}

func (r *MessageRepo) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var row Message
	if err := r.db.WithContext(ctx).First(&row, int64(id)).Error; err != nil {
		return nil, notFound(err)
	}
	return &domain.Message{
		ID:             domain.MessageID(row.ID),
		RoomID:         domain.RoomID(row.RoomID),
		UserID:         domain.UserID(row.UserID),
		Type:           domain.MessageType(row.MessageType),
		Content:        row.MessageContent,
		QuoteUserID:    domain.UserID(row.QuoteUserID),
		QuoteMessageID: domain.MessageID(row.QuoteMessageID),
		Status:         domain.MessageStatus(row.MessageStatus),
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (r *MessageRepo) SetMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) error {
	res := r.db.WithContext(ctx).Model(&Message{}).Where("id = ?", int64(id)).Update("message_status", int(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}
