// Package stream adapts a bus subscription into a long-lived SSE push channel.
//
// Frames follow the text/event-stream format: comment frames for the
// connected acknowledgment and keep-alive heartbeat, data frames for events.
// No Last-Event-ID or replay - a reconnecting client starts fresh.
package stream

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/funpr/verza-invest-ai/internal/apperr"
	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/metrics"
)

const (
	connectedFrame = ": connected\n\n"
	keepAliveFrame = ": keep-alive\n\n"
)

// Streamer serves SSE connections fed from one bus.
type Streamer struct {
	bus       *bus.Bus
	name      string
	clock     clockwork.Clock
	heartbeat time.Duration
	maxPerKey int

	mu   sync.Mutex
	open map[string]int
}

// New creates a Streamer. heartbeat is the keep-alive interval; maxPerKey
// caps concurrent streams per subscription key (resource exhaustion guard).
func New(b *bus.Bus, name string, clock clockwork.Clock, heartbeat time.Duration, maxPerKey int) *Streamer {
	return &Streamer{
		bus:       b,
		name:      name,
		clock:     clock,
		heartbeat: heartbeat,
		maxPerKey: maxPerKey,
		open:      make(map[string]int),
	}
}

// ServeKey streams events published under key to the client until it
// disconnects. On teardown the heartbeat timer is stopped and the bus
// subscription removed before the handler returns; leaking either is a bug.
func (s *Streamer) ServeKey(c echo.Context, key string) error {
	if !s.acquire(key) {
		metrics.StreamsRejectedTotal.Inc()
		return apperr.Unavailable("too many open streams").WithField("key", key)
	}
	defer s.release(key)

	streamID := uuid.NewString()
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache, no-transform")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	// Acknowledge before any real event so the client can tell an
	// established connection from a silently hanging one.
	if err := s.writeFrame(res, connectedFrame); err != nil {
		return nil
	}

	events, cancel := s.bus.Subscribe(key)
	defer cancel()

	ticker := s.clock.NewTicker(s.heartbeat)
	defer ticker.Stop()

	metrics.StreamsOpenCurrent.WithLabelValues(s.name).Inc()
	defer metrics.StreamsOpenCurrent.WithLabelValues(s.name).Dec()

	slog.Debug("Stream opened", "bus", s.name, "key", key, "stream_id", streamID)
	defer slog.Debug("Stream closed", "bus", s.name, "key", key, "stream_id", streamID)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.Chan():
			if err := s.writeFrame(res, keepAliveFrame); err != nil {
				metrics.StreamWriteErrorsTotal.Inc()
				return nil
			}
			metrics.StreamHeartbeatsTotal.Inc()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			raw, err := domain.EncodeEvent(ev)
			if err != nil {
				slog.Error("Failed to encode event", "bus", s.name, "key", key, "error", err)
				continue
			}
			if err := s.writeFrame(res, fmt.Sprintf("data: %s\n\n", raw)); err != nil {
				metrics.StreamWriteErrorsTotal.Inc()
				return nil
			}
		}
	}
}

func (s *Streamer) writeFrame(res *echo.Response, frame string) error {
	if _, err := res.Write([]byte(frame)); err != nil {
		return err
	}
	res.Flush()
	return nil
}

func (s *Streamer) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open[key] >= s.maxPerKey {
		slog.Warn("Rejecting stream: per-key limit reached", "bus", s.name, "key", key, "limit", s.maxPerKey)
		return false
	}
	s.open[key]++
	return true
}

func (s *Streamer) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open[key]--
	if s.open[key] <= 0 {
		delete(s.open, key)
	}
}
