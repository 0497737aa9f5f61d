package store

import (
	"context"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"gorm.io/gorm"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, int64(id)).Error; err != nil {
		return nil, notFound(err)
	}
	return &domain.User{
		ID:     domain.UserID(u.ID),
		Name:   u.UserName,
		Nick:   u.UserNick,
		Email:  u.UserEmail,
		Avatar: u.UserAvatar,
		Role:   domain.Role(u.UserRole),
		Sign:   u.UserSign,
		RoomBg: u.UserRoomBg,
		Sex:    u.UserSex,
		Status: domain.UserStatus(u.UserStatus),
	}, nil
}
