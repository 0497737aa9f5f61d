package domain

type RoomID int64

// PasswordMode mirrors the persisted room_need_password column.
type PasswordMode int

const (
	RoomPublic   PasswordMode = 1
	RoomPassword PasswordMode = 2
)

type Room struct {
	ID           RoomID       `json:"room_id"`
	OwnerID      UserID       `json:"room_user_id"`
	Name         string       `json:"room_name"`
	Notice       string       `json:"room_notice"`
	Logo         string       `json:"room_logo"`
	Background   string       `json:"room_bg_img"`
	PasswordMode PasswordMode `json:"room_need_password"`
	Password     string       `json:"-"`
}

func (r *Room) NeedsPassword() bool { return r.PasswordMode == RoomPassword }
