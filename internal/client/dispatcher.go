package client

import (
	"context"
	"log/slog"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// SessionDispatcher routes session-scoped events to incremental UI updates.
// Only the referenced field is patched; nothing triggers a full refetch.
type SessionDispatcher struct {
	// OnTerminated forces the terminal not-found state.
	OnTerminated func()
	// OnTopicChanged patches the current topic id.
	OnTopicChanged func(topicID int)
	// OnParticipantsChanged re-fetches the participant list only.
	OnParticipantsChanged func(ctx context.Context)
}

// Dispatch handles one session-scoped event.
func (d *SessionDispatcher) Dispatch(ctx context.Context, ev domain.Event) {
	switch e := ev.(type) {
	case domain.Terminated:
		if d.OnTerminated != nil {
			d.OnTerminated()
		}
	case domain.TopicUpdated:
		if d.OnTopicChanged != nil {
			d.OnTopicChanged(e.CurrentTopicID)
		}
	case domain.Joined:
		if d.OnParticipantsChanged != nil {
			d.OnParticipantsChanged(ctx)
		}
	default:
		slog.Debug("Ignoring event on session stream", "event_type", ev.EventType())
	}
}

// SiteDispatcher coalesces site-wide events into metadata refetches: any
// site event means "refetch everything", and a burst of events collapses
// into one pending refetch.
type SiteDispatcher struct {
	refetch func(ctx context.Context)
	pending chan struct{}
}

// NewSiteDispatcher wires refetch as the coalesced full-refetch action.
// Run must be started for dispatched events to take effect.
func NewSiteDispatcher(refetch func(ctx context.Context)) *SiteDispatcher {
	return &SiteDispatcher{
		refetch: refetch,
		pending: make(chan struct{}, 1),
	}
}

// Dispatch marks a refetch as pending. Safe to call from any goroutine;
// never blocks.
func (d *SiteDispatcher) Dispatch(_ context.Context, ev domain.Event) {
	slog.Debug("Site event received", "event_type", ev.EventType())
	select {
	case d.pending <- struct{}{}:
	default:
		// A refetch is already queued; this event rides along.
	}
}

// Run executes pending refetches until ctx is cancelled.
func (d *SiteDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-d.pending:
			d.refetch(ctx)
		case <-ctx.Done():
			return
		}
	}
}
