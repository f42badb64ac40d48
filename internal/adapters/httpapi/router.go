// Package httpapi is the bridge surface the console UI drives.
package httpapi

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/app"
	"github.com/iseeyou-platform/realtime/internal/config"
)

func SetupRouter(cfg *config.Config, console *app.Console) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConsoleSessions", store))

	log.Info().Str("module", "adapters.httpapi").Str("admin", string(console.Identity())).Msg("router setup")

	h := &handlers{console: console}

	api := r.Group("/api")
	api.GET("/status", h.status)

	api.POST("/conversations/:id/join", h.joinConversation)
	api.POST("/conversations/:id/read", h.markRead)
	api.GET("/conversations/:id/messages", h.messages)
	api.POST("/messages", h.sendMessage)
	api.POST("/broadcasts", h.broadcast)

	api.GET("/calls", h.callState)
	api.POST("/calls/events", h.callEvent)
	api.POST("/calls/accept", h.acceptCall)
	api.POST("/calls/reject", h.rejectCall)
	api.POST("/calls/end", h.endCall)
	api.POST("/calls/reset", h.resetCall)

	return r
}
