package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestUserRepo_GetUser(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&User{ID: 7, UserName: "ann", UserNick: "Ann", UserEmail: "a@x", UserRole: "admin", UserStatus: -1})
	repo := NewUserRepo(gdb)

	u, err := repo.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Nick != "Ann" || u.Role != domain.RoleAdmin || !u.Banned() {
		t.Errorf("GetUser() = %+v", u)
	}
	if _, err := repo.GetUser(context.Background(), 8); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestRoomRepo_GetRoomByPublicID(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&Room{RoomID: 888, RoomUserID: 1, RoomName: "lobby", RoomNeedPassword: 2, RoomPassword: "pw"})
	repo := NewRoomRepo(gdb)

	r, err := repo.GetRoom(context.Background(), 888)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if r.ID != 888 || r.OwnerID != 1 || !r.NeedsPassword() || r.Password != "pw" {
		t.Errorf("GetRoom() = %+v", r)
	}
	if _, err := repo.GetRoom(context.Background(), 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing room error = %v, want ErrNotFound", err)
	}
}

func TestModeratorRepo_ActiveOnly(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&RoomModerator{RoomID: 888, UserID: 2, Status: 1})
	gdb.Create(&RoomModerator{RoomID: 888, UserID: 3, Status: 1})
	gdb.Model(&RoomModerator{}).Where("user_id = ?", 3).Update("status", 0)
	gdb.Create(&RoomModerator{RoomID: 999, UserID: 4, Status: 1})

	ids, err := NewModeratorRepo(gdb).ActiveModerators(context.Background(), 888)
	if err != nil {
		t.Fatalf("ActiveModerators() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("ActiveModerators() = %v, want [2]", ids)
	}
}

func TestMessageRepo_RoundTrip(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewMessageRepo(gdb)
	ctx := context.Background()

	m := &domain.Message{RoomID: 888, UserID: 1, Type: domain.MessageText, Content: "hi", Status: domain.MessageNormal, CreatedAt: time.Now()}
	if err := repo.AppendMessage(ctx, m); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if m.ID == 0 {
		t.Fatal("AppendMessage() did not set id")
	}
	if err := repo.SetMessageStatus(ctx, m.ID, domain.MessageRecalled); err != nil {
		t.Fatalf("SetMessageStatus() error = %v", err)
	}
	got, err := repo.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if got.Status != domain.MessageRecalled || got.Content != "hi" || got.RoomID != 888 {
		t.Errorf("GetMessage() = %+v", got)
	}
	if err := repo.SetMessageStatus(ctx, 999, domain.MessageRecalled); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetMessageStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMusicRepo_RandomAndDelete(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewMusicRepo(gdb)
	ctx := context.Background()

	tr, err := repo.RandomTrack(ctx)
	if err != nil || tr != nil {
		t.Fatalf("RandomTrack() on empty library = %v, %v; want nil, nil", tr, err)
	}

	gdb.Create(&Music{MusicMid: "m1", MusicName: "one", Source: "kugou"})
	tr, err = repo.RandomTrack(ctx)
	if err != nil || tr == nil || tr.MusicID != "m1" {
		t.Fatalf("RandomTrack() = %v, %v", tr, err)
	}

	if err := repo.DeleteTrack(ctx, "m1"); err != nil {
		t.Fatalf("DeleteTrack() error = %v", err)
	}
	if err := repo.DeleteTrack(ctx, "m1"); err != nil {
		t.Fatalf("DeleteTrack() twice error = %v", err)
	}
	if tr, _ := repo.RandomTrack(ctx); tr != nil {
		t.Errorf("track still in library after purge: %+v", tr)
	}
}

func TestIPBlocklist(t *testing.T) {
	gdb := openTestDB(t)
	past := time.Now().Add(-time.Hour)
	gdb.Create(&IPBlacklist{IP: "10.0.0.1", Status: 1})
	gdb.Create(&IPBlacklist{IP: "192.168.1.*", Status: 1})
	gdb.Create(&IPBlacklist{IP: "172.16.0.9", Status: 1, ExpireAt: &past})
	gdb.Create(&IPBlacklist{IP: "8.8.8.8", Status: 1})
	gdb.Model(&IPBlacklist{}).Where("ip = ?", "8.8.8.8").Update("status", 0)
	bl := NewIPBlocklist(gdb)

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.0.0.2", false},
		{"192.168.1.77", true},
		{"192.168.2.77", false},
		{"172.16.0.9", false},
		{"8.8.8.8", false},
	}
	for _, tt := range tests {
		got, err := bl.IsBlocked(context.Background(), tt.ip)
		if err != nil {
			t.Fatalf("IsBlocked(%s) error = %v", tt.ip, err)
		}
		if got != tt.want {
			t.Errorf("IsBlocked(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestWordFilter(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&SensitiveWord{Word: "darn", Status: 1, Type: 0})
	gdb.Create(&SensitiveWord{Word: "heck", Status: 1, Type: 0, Replacement: "h*"})
	gdb.Create(&SensitiveWord{Word: "forbidden", Status: 1, Type: 1})
	gdb.Create(&SensitiveWord{Word: "off", Status: 1, Type: 1})
	gdb.Model(&SensitiveWord{}).Where("word = ?", "off").Update("status", 0)
	f := NewWordFilter(gdb)

	tests := []struct {
		in      string
		want    string
		blocked bool
	}{
		{"darn it", "**** it", false},
		{"what the heck, darn", "what the h*, ****", false},
		{"this is forbidden", "", true},
		{"turn it off", "turn it off", false},
	}
	for _, tt := range tests {
		res, err := f.Filter(context.Background(), tt.in)
		if err != nil {
			t.Fatalf("Filter(%q) error = %v", tt.in, err)
		}
		if res.Blocked != tt.blocked {
			t.Errorf("Filter(%q).Blocked = %v, want %v", tt.in, res.Blocked, tt.blocked)
		}
		if !tt.blocked && res.Text != tt.want {
			t.Errorf("Filter(%q) = %q, want %q", tt.in, res.Text, tt.want)
		}
	}
}
