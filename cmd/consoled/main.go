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

	"github.com/iseeyou-platform/realtime/internal/adapters/httpapi"
	"github.com/iseeyou-platform/realtime/internal/app"
	"github.com/iseeyou-platform/realtime/internal/call"
	"github.com/iseeyou-platform/realtime/internal/call/httpsig"
	"github.com/iseeyou-platform/realtime/internal/call/rtc"
	"github.com/iseeyou-platform/realtime/internal/config"
	"github.com/iseeyou-platform/realtime/internal/connection"
	"github.com/iseeyou-platform/realtime/internal/domain"
	"github.com/iseeyou-platform/realtime/internal/store"
	"github.com/iseeyou-platform/realtime/internal/transport/ws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.AdminID == "" {
		log.Fatal().Msg("admin_id is required")
	}

	factory := ws.NewFactory(ws.Options{
		URL:         cfg.Chat.URL,
		MaxAttempts: cfg.Chat.ReconnectAttempts,
		Backoff:     cfg.Chat.ReconnectBackoff,
		AckTimeout:  cfg.Chat.AckTimeout,
	})
	manager := connection.NewManager(factory)
	messages := store.New(cfg.Chat.DedupWindow)

	appSettings := call.AppSettings{
		AppID:   cfg.Call.AppID,
		Region:  cfg.Call.Region,
		AuthKey: cfg.Call.AuthKey,
	}
	signaler := httpsig.NewClient(cfg.Call.SignalURL, cfg.Call.AuthKey)
	calls := call.NewController(signaler, rtc.NewEngine(), appSettings)
	calls.OnClose(func(final call.State, sess *domain.CallSession) {
		ev := log.Info().Str("module", "main").Str("final", final.String())
		if sess != nil {
			ev = ev.Str("session", string(sess.SessionID))
		}
		ev.Msg("call closed")
	})

	console := app.NewConsole(domain.UserID(cfg.AdminID), manager, messages, calls)
	if err := console.Start(ctx); err != nil {
		// Degraded mode: the HTTP surface still serves, sends fail until
		// the operator reconnects.
		log.Warn().Err(err).Msg("console started without a live channel")
	}

	r := httpapi.SetupRouter(cfg, console)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("admin", cfg.AdminID).Msg("console bridge started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	console.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
