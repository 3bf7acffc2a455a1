package server

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/funpr/verza-invest-ai/internal/apperr"
	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/domain"
)

// dataResponse is the site metadata payload: everything a client refetches
// when a site-wide refresh event arrives.
type dataResponse struct {
	Topics         []domain.Topic         `json:"topics"`
	ActiveTopic    *domain.Topic          `json:"activeTopic,omitempty"`
	VotedTopicID   *int                   `json:"votedTopicId,omitempty"`
	PublicSessions []domain.PublicSession `json:"publicSessions"`
}

func (s *Server) handleGetData(c echo.Context) error {
	ctx := c.Request().Context()

	topics, err := s.topics.ListApproved(ctx)
	if err != nil {
		return apperr.Internal("failed to load topics", err)
	}

	resp := dataResponse{Topics: topics}

	active, err := s.topics.WeeklyPick(ctx)
	switch {
	case err == nil:
		resp.ActiveTopic = active
	case errors.Is(err, domain.ErrTopicNotFound):
		// No weekly pick flagged right now.
	default:
		return apperr.Internal("failed to load weekly pick", err)
	}

	if userID, ok := callerID(c); ok {
		votedID, voted, err := s.ledger.VotedTopicID(ctx, userID)
		if err != nil {
			return apperr.Internal("failed to load vote", err)
		}
		if voted {
			resp.VotedTopicID = &votedID
		}
	}

	publicSessions, err := s.registry.ListPublic(ctx)
	if err != nil {
		return apperr.Internal("failed to load public sessions", err)
	}
	resp.PublicSessions = publicSessions

	if err := c.JSON(200, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSiteEvents(c echo.Context) error {
	return s.siteStreamer.ServeKey(c, bus.SiteKey)
}
