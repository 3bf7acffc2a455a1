package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Site metadata and its push stream
	s.echo.GET("/api/data", s.handleGetData, s.resolveIdentity)
	if s.siteStreamer != nil {
		s.echo.GET("/api/data/events", s.handleSiteEvents)
	}

	// Voting (authenticated)
	s.echo.POST("/api/topics/vote", s.handleVote, s.resolveIdentity, s.requireIdentity)

	// Session lifecycle; leave is deliberately unauthenticated-tolerant
	s.echo.GET("/api/sessions/:id", s.handleGetSession)
	s.echo.POST("/api/sessions/:id", s.handleJoinSession, s.resolveIdentity, s.requireIdentity)
	s.echo.PATCH("/api/sessions/:id", s.handleUpdateSession, s.resolveIdentity, s.requireIdentity)
	s.echo.DELETE("/api/sessions/:id", s.handleLeaveSession, s.resolveIdentity)
	if s.sessionStream != nil {
		s.echo.GET("/api/sessions/:id/events", s.handleSessionEvents)
	}
}
