package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"

	"github.com/liangshengmoran/Nine-chat-backend/internal/adapters/auth"
	"github.com/liangshengmoran/Nine-chat-backend/internal/adapters/bot"
	router "github.com/liangshengmoran/Nine-chat-backend/internal/adapters/http"
	"github.com/liangshengmoran/Nine-chat-backend/internal/adapters/music"
	wssignal "github.com/liangshengmoran/Nine-chat-backend/internal/adapters/signal"
	"github.com/liangshengmoran/Nine-chat-backend/internal/adapters/store"
	"github.com/liangshengmoran/Nine-chat-backend/internal/app"
	"github.com/liangshengmoran/Nine-chat-backend/internal/app/orch"
	"github.com/liangshengmoran/Nine-chat-backend/internal/config"
	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	transport "github.com/liangshengmoran/Nine-chat-backend/internal/transport/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode != "release" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("secret is required to verify tokens")
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	users := store.NewUserRepo(db)
	rooms := store.NewRoomRepo(db)
	verifier := auth.NewVerifier(cfg.Secret)

	var (
		hooks   bot.Fanout
		updates transport.UpdateSource
	)
	if cfg.Bot.WebhookURL != "" {
		hooks = append(hooks, bot.NewWebhook(cfg.Bot.WebhookURL, cfg.Bot.WebhookSecret, cfg.Bot.WebhookTimeout))
	}
	if cfg.Valkey.Addr != "" {
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.Valkey.Addr}})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Valkey.Addr).Msg("failed to connect to valkey")
		}
		defer client.Close()
		q := bot.NewQueue(client, "", cfg.Valkey.QueueCap)
		hooks = append(hooks, q)
		updates = q
	}
	var botHook core.BotHook
	if len(hooks) > 0 {
		botHook = hooks
	}

	o := orch.New(orch.Config{
		CloseDelay:    cfg.RoomCloseDelay,
		MusicCooldown: cfg.MusicCooldown,
		RecallWindow:  cfg.RecallWindow,
		MaxPlayRetry:  cfg.MaxPlayRetry,
	}, orch.Deps{
		Users:      users,
		Rooms:      rooms,
		Moderators: store.NewModeratorRepo(db),
		Messages:   store.NewMessageRepo(db),
		Library:    store.NewMusicRepo(db),
		Filter:     store.NewWordFilter(db),
		Provider:   music.NewHTTPProvider(cfg.Music.BaseURL, cfg.Music.Timeout),
		Bot:        botHook,
	}, core.SystemClock(), app.SimplePolicy{})
	go o.Run(ctx)

	admission := &app.Admission{
		Auth:  verifier,
		Users: users,
		Rooms: rooms,
		IPs:   store.NewIPBlocklist(db),
	}
	ws := wssignal.NewSignalWSController(o, admission,
		wssignal.NewMessageRateLimiter(cfg.MessageRate, cfg.MessageBurst),
		wssignal.Options{
			PublicRoom: domain.RoomID(cfg.PublicRoomID),
			SendBuffer: cfg.SendBuffer,
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
		})
	handlers := &transport.Handlers{
		Engine:      o,
		Auth:        verifier,
		Users:       users,
		Updates:     updates,
		BotCooldown: cfg.Bot.Cooldown,
	}

	r := router.SetupRouter(ctx, cfg, ws, handlers)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Nine chat server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("Server exited gracefully")
}
