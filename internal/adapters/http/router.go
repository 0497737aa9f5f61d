package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/liangshengmoran/Nine-chat-backend/internal/adapters/signal"
	"github.com/liangshengmoran/Nine-chat-backend/internal/config"
	"github.com/liangshengmoran/Nine-chat-backend/internal/metrics"
	transport "github.com/liangshengmoran/Nine-chat-backend/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ws *signal.SignalWSController, h *transport.Handlers) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/rooms", h.ListRooms)
	api.GET("/ws/chat", func(c *gin.Context) {
		ws.HandleSignal(ctx, c)
	})

	bot := api.Group("/bot", h.BotAuth())
	bot.POST("/rooms/:id/messages", h.BotSendMessage)
	bot.POST("/rooms/:id/music", h.BotChooseMusic)
	bot.GET("/rooms/:id/updates", h.PollUpdates)

	return r
}
