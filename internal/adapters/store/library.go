package store

import (
	"context"
	"math/rand"

	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type MusicRepo struct {
	db *gorm.DB
}

func NewMusicRepo(db *gorm.DB) *MusicRepo {
	return &MusicRepo{db: db}
}

// RandomTrack samples one row uniformly by offset. It returns (nil, nil)
// when the library is empty.
func (r *MusicRepo) RandomTrack(ctx context.Context) (*domain.Track, error) {
	db := r.db.WithContext(ctx)
	var count int64
	if err := db.Model(&Music{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	var rows []Music
	if err := db.Order("id").Offset(rand.Intn(int(count))).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	m := rows[0]
	return &domain.Track{
		MusicID:  domain.MusicID(m.MusicMid),
		Source:   m.Source,
		Name:     m.MusicName,
		Singer:   m.MusicSinger,
		Album:    m.MusicAlbum,
		Cover:    m.MusicCover,
		Duration: m.MusicDuration,
	}, nil
}

// DeleteTrack purges a track by music_mid. Missing rows are not an error.
func (r *MusicRepo) DeleteTrack(ctx context.Context, id domain.MusicID) error {
	res := r.db.WithContext(ctx).Where("music_mid = ?", string(id)).Delete(&Music{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Str("module", "store").Str("mid", string(id)).Msg("track purged from library")
	}
	return nil
}
