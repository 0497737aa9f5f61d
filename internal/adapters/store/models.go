package store

import "time"

type User struct {
	ID           int64  `gorm:"primaryKey"`
	UserName     string `gorm:"size:12;not null"`
	UserNick     string `gorm:"size:12;not null"`
	UserPassword string `gorm:"size:1000"`
	UserStatus   int    `gorm:"default:1"`
	UserSex      int    `gorm:"default:1"`
	UserEmail    string `gorm:"size:64;uniqueIndex"`
	UserAvatar   string `gorm:"size:600"`
	UserRole     string `gorm:"size:10;default:user"`
	UserRoomBg   string `gorm:"size:255"`
	UserSign     string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "tb_user" }

type Room struct {
	ID               int64  `gorm:"primaryKey"`
	RoomID           int64  `gorm:"uniqueIndex;not null"`
	RoomUserID       int64  `gorm:"index;not null"`
	RoomLogo         string `gorm:"size:255"`
	RoomName         string `gorm:"size:20;not null"`
	RoomNeedPassword int    `gorm:"default:1"`
	RoomPassword     string `gorm:"size:255"`
	RoomNotice       string `gorm:"size:512"`
	RoomBgImg        string `gorm:"size:255"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Room) TableName() string { return "tb_room" }

type RoomModerator struct {
	ID          int64 `gorm:"primaryKey"`
	RoomID      int64 `gorm:"index;not null"`
	UserID      int64 `gorm:"index;not null"`
	Status      int   `gorm:"default:1"`
	AppointedBy int64
	Remark      string `gorm:"size:255"`
	CreatedAt   time.Time
}

func (RoomModerator) TableName() string { return "tb_room_moderator" }

type Message struct {
	ID             int64  `gorm:"primaryKey"`
	UserID         int64  `gorm:"index;not null"`
	RoomID         int64  `gorm:"index;not null"`
	MessageContent string `gorm:"type:text;not null"`
	MessageType    string `gorm:"size:64;not null"`
	QuoteUserID    int64
	QuoteMessageID int64
	MessageStatus  int `gorm:"default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Message) TableName() string { return "tb_message" }

type Music struct {
	ID            int64  `gorm:"primaryKey"`
	MusicMid      string `gorm:"size:100;uniqueIndex;not null"`
	MusicName     string `gorm:"size:300;not null"`
	MusicSinger   string `gorm:"size:300"`
	MusicAlbum    string `gorm:"size:300"`
	MusicCover    string `gorm:"size:500"`
	MusicDuration int
	Source        string `gorm:"size:20;default:kugou"`
	CreatedAt     time.Time
}

func (Music) TableName() string { return "tb_music" }

type IPBlacklist struct {
	ID       int64  `gorm:"primaryKey"`
	IP       string `gorm:"column:ip;size:50;uniqueIndex;not null"`
	Reason   string `gorm:"size:255"`
	Status   int    `gorm:"default:1"`
	ExpireAt *time.Time
}

func (IPBlacklist) TableName() string { return "tb_ip_blacklist" }

type SensitiveWord struct {
	ID          int64  `gorm:"primaryKey"`
	Word        string `gorm:"size:100;uniqueIndex;not null"`
	Status      int    `gorm:"default:1"`
	Type        int    `gorm:"default:0"`
	Replacement string `gorm:"size:100"`
}

func (SensitiveWord) TableName() string { return "tb_sensitive_word" }
