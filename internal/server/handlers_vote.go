package server

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/funpr/verza-invest-ai/internal/apperr"
	"github.com/funpr/verza-invest-ai/internal/domain"
)

type voteRequest struct {
	ID *int `json:"id"`
}

func (s *Server) handleVote(c echo.Context) error {
	userID, _ := callerID(c)

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.ID == nil {
		return apperr.BadRequest("topic ID is required")
	}

	topic, err := s.ledger.CastVote(c.Request().Context(), userID, *req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrTopicNotFound) {
			return apperr.NotFound("topic not found").WithField("topic_id", *req.ID)
		}
		return apperr.Internal("failed to record vote", err).WithField("topic_id", *req.ID)
	}

	if err := c.JSON(200, topic); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
