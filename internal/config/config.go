package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	PublicRoomID   int64         `mapstructure:"public_room_id"`
	RoomCloseDelay time.Duration `mapstructure:"room_close_delay"`
	MusicCooldown  time.Duration `mapstructure:"music_cooldown"`
	RecallWindow   time.Duration `mapstructure:"recall_window"`
	MaxPlayRetry   int           `mapstructure:"max_play_retry"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MessageRate    float64       `mapstructure:"message_rate"`
	MessageBurst   int           `mapstructure:"message_burst"`

	Database DatabaseConfig `mapstructure:"database"`
	Valkey   ValkeyConfig   `mapstructure:"valkey"`
	Bot      BotConfig      `mapstructure:"bot"`
	Music    MusicConfig    `mapstructure:"music"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	QueueCap int    `mapstructure:"queue_cap"`
}

type BotConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
}

type MusicConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults below.
// A .env file, when present, is loaded first; NINE_* variables override
// everything (NINE_DATABASE_DSN for database.dsn).
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		fmt.Println("✅ Loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("NINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | DB: %s | Public room: %d\n", cfg.Mode, cfg.Port, cfg.Database.Driver, cfg.PublicRoomID)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("public_room_id", 888)
	v.SetDefault("room_close_delay", "5m")
	v.SetDefault("music_cooldown", "8s")
	v.SetDefault("recall_window", "2m")
	v.SetDefault("max_play_retry", 5)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("message_rate", 2.0)
	v.SetDefault("message_burst", 5)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.queue_cap", 100)
	v.SetDefault("bot.webhook_url", "")
	v.SetDefault("bot.webhook_secret", "")
	v.SetDefault("bot.webhook_timeout", "5s")
	v.SetDefault("bot.cooldown", "8s")
	v.SetDefault("music.base_url", "http://127.0.0.1:3000")
	v.SetDefault("music.timeout", "8s")
}
