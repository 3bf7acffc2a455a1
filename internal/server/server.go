package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/funpr/verza-invest-ai/internal/apperr"
	"github.com/funpr/verza-invest-ai/internal/config"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/ledger"
	"github.com/funpr/verza-invest-ai/internal/registry"
	"github.com/funpr/verza-invest-ai/internal/stream"
)

// storeHealthChecker is the minimal interface for store readiness checks.
type storeHealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	registry      *registry.Registry
	ledger        *ledger.Ledger
	topics        domain.TopicStore
	siteStreamer  *stream.Streamer
	sessionStream *stream.Streamer
	cookieStore   *sessions.CookieStore
	storeHealth   storeHealthChecker
}

// NewServer wires the HTTP surface. siteStreamer and sessionStream may be
// nil when push is disabled platform-wide; the stream routes are then not
// registered and clients run pure polling.
func NewServer(cfg *config.Config, reg *registry.Registry, led *ledger.Ledger, topics domain.TopicStore, siteStreamer, sessionStream *stream.Streamer, storeHealth storeHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperr.Middleware())

	cookieStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))

	srv := &Server{
		echo:          e,
		config:        cfg,
		registry:      reg,
		ledger:        led,
		topics:        topics,
		siteStreamer:  siteStreamer,
		sessionStream: sessionStream,
		cookieStore:   cookieStore,
		storeHealth:   storeHealth,
	}

	srv.registerRoutes()

	if cfg.DisablePush {
		slog.Info("Push transports disabled platform-wide, stream routes not registered")
	}

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
