package server

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/funpr/verza-invest-ai/internal/apperr"
	"github.com/funpr/verza-invest-ai/internal/domain"
)

type joinRequest struct {
	// IsPublic only matters when this join creates the session.
	IsPublic *bool `json:"isPublic"`
}

type updateSessionRequest struct {
	IsPublic       *bool `json:"isPublic"`
	CurrentTopicID *int  `json:"currentTopicId"`
	IsActive       *bool `json:"isActive"`
}

func (s *Server) handleGetSession(c echo.Context) error {
	sessionID := c.Param("id")

	view, err := s.registry.Get(c.Request().Context(), sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return apperr.NotFound("session not found").WithField("session_id", sessionID)
		}
		return apperr.Internal("failed to load session", err).WithField("session_id", sessionID)
	}

	if err := c.JSON(200, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleJoinSession(c echo.Context) error {
	userID, _ := callerID(c)
	sessionID := c.Param("id")

	// Body is optional; a bare join of an existing session sends none.
	var req joinRequest
	_ = c.Bind(&req)
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	_, err := s.registry.Ensure(c.Request().Context(), sessionID, userID, isPublic)
	if err != nil {
		// Closed and unknown sessions are indistinguishable to callers.
		switch {
		case errors.Is(err, domain.ErrSessionClosed):
			return apperr.NotFound("session has closed").WithField("session_id", sessionID)
		case errors.Is(err, domain.ErrSessionNotFound):
			return apperr.NotFound("session not found").WithField("session_id", sessionID)
		default:
			return apperr.Internal("failed to join session", err).WithField("session_id", sessionID)
		}
	}

	if err := c.JSON(200, map[string]bool{"success": true}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateSession(c echo.Context) error {
	userID, _ := callerID(c)
	sessionID := c.Param("id")

	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	patch := domain.SessionPatch{
		IsPublic:       req.IsPublic,
		CurrentTopicID: req.CurrentTopicID,
		IsActive:       req.IsActive,
	}
	if patch.Empty() {
		return apperr.BadRequest("no settings to update")
	}
	if patch.IsActive != nil && *patch.IsActive {
		// Termination is one-way; reactivating is not a thing.
		return apperr.BadRequest("sessions cannot be reactivated")
	}

	err := s.registry.UpdateSettings(c.Request().Context(), sessionID, userID, callerIsPrivileged(c), patch)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			return apperr.NotFound("session not found").WithField("session_id", sessionID)
		case errors.Is(err, domain.ErrNotOwner):
			return apperr.Forbidden("only the session owner can modify settings").
				WithField("session_id", sessionID)
		default:
			return apperr.Internal("failed to update session", err).WithField("session_id", sessionID)
		}
	}

	if err := c.JSON(200, map[string]bool{"success": true}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleLeaveSession is best-effort: anonymous callers get a silent success
// so client cleanup never has to special-case an expired identity.
func (s *Server) handleLeaveSession(c echo.Context) error {
	sessionID := c.Param("id")

	userID, ok := callerID(c)
	if ok {
		if err := s.registry.RemoveParticipant(c.Request().Context(), sessionID, userID); err != nil {
			return apperr.Internal("failed to leave session", err).WithField("session_id", sessionID)
		}
	}

	if err := c.JSON(200, map[string]bool{"success": true}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSessionEvents(c echo.Context) error {
	return s.sessionStream.ServeKey(c, c.Param("id"))
}
