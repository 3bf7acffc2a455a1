package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/config"
	"github.com/funpr/verza-invest-ai/internal/ledger"
	"github.com/funpr/verza-invest-ai/internal/logging"
	"github.com/funpr/verza-invest-ai/internal/registry"
	"github.com/funpr/verza-invest-ai/internal/server"
	mongostore "github.com/funpr/verza-invest-ai/internal/store/mongo"
	"github.com/funpr/verza-invest-ai/internal/stream"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config) *mongostore.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		slog.Error("Failed to connect to store", "error", err)
		os.Exit(1)
	}
	return db
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	db := setupStore(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	}()

	sessionStore := mongostore.NewSessionStore(db)
	topicStore := mongostore.NewTopicStore(db)
	userDirectory := mongostore.NewUserDirectory(db)

	// One bus per topic domain: the site-wide metadata bus and the
	// session bus keyed by session id. Explicitly owned here, no ambient
	// global state.
	siteBus := bus.New("site")
	sessionBus := bus.New("session")

	reg := registry.New(sessionStore, userDirectory, sessionBus, siteBus, clock)
	led := ledger.New(topicStore, siteBus)

	var siteStreamer, sessionStreamer *stream.Streamer
	if !cfg.DisablePush {
		siteStreamer = stream.New(siteBus, "site", clock, cfg.HeartbeatInterval, cfg.MaxStreamsPerKey)
		sessionStreamer = stream.New(sessionBus, "session", clock, cfg.HeartbeatInterval, cfg.MaxStreamsPerKey)
	}

	srv := server.NewServer(cfg, reg, led, topicStore, siteStreamer, sessionStreamer, db)

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
