package store

import (
	"context"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"gorm.io/gorm"
)

type RoomRepo struct {
	db *gorm.DB
}

func NewRoomRepo(db *gorm.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// GetRoom looks a room up by its public room_id, not the row id.
func (r *RoomRepo) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var m Room
	if err := r.db.WithContext(ctx).Where("room_id = ?", int64(id)).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &domain.Room{
		ID:           domain.RoomID(m.RoomID),
		OwnerID:      domain.UserID(m.RoomUserID),
		Name:         m.RoomName,
		Notice:       m.RoomNotice,
		Logo:         m.RoomLogo,
		Background:   m.RoomBgImg,
		PasswordMode: domain.PasswordMode(m.RoomNeedPassword),
		Password:     m.RoomPassword,
	}, nil
}

type ModeratorRepo struct {
	db *gorm.DB
}

func NewModeratorRepo(db *gorm.DB) *ModeratorRepo {
	return &ModeratorRepo{db: db}
}

func (r *ModeratorRepo) ActiveModerators(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&RoomModerator{}).
		Where("room_id = ? AND status = ?", int64(roomID), 1).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserID(id))
	}
	return out, nil
}
