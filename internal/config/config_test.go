package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.PublicRoomID != 888 {
		t.Errorf("Load() PublicRoomID = %v, want 888", cfg.PublicRoomID)
	}
	if cfg.RoomCloseDelay != 5*time.Minute {
		t.Errorf("Load() RoomCloseDelay = %v, want 5m", cfg.RoomCloseDelay)
	}
	if cfg.MusicCooldown != 8*time.Second {
		t.Errorf("Load() MusicCooldown = %v, want 8s", cfg.MusicCooldown)
	}
	if cfg.MaxPlayRetry != 5 {
		t.Errorf("Load() MaxPlayRetry = %v, want 5", cfg.MaxPlayRetry)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Load() Database.Driver = %v, want postgres", cfg.Database.Driver)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("NINE_PORT", "9090")
	t.Setenv("NINE_SECRET", "my-secret")
	t.Setenv("NINE_ROOM_CLOSE_DELAY", "30s")
	t.Setenv("NINE_DATABASE_DRIVER", "sqlite")
	t.Setenv("NINE_DATABASE_DSN", "file:nine.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.Secret != "my-secret" {
		t.Errorf("Load() Secret = %v, want my-secret", cfg.Secret)
	}
	if cfg.RoomCloseDelay != 30*time.Second {
		t.Errorf("Load() RoomCloseDelay = %v, want 30s", cfg.RoomCloseDelay)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file:nine.db" {
		t.Errorf("Load() Database = %+v", cfg.Database)
	}
}
