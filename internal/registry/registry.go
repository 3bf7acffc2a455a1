// Package registry holds the live state machine of each discussion session.
//
// Every mutation goes store-first, then publishes a best-effort notification:
// a notification that is dropped or arrives late never rolls back the state
// change that triggered it. Sessions move ACTIVE -> TERMINATED exactly once
// and never come back.
package registry

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jonboulle/clockwork"

	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/metrics"
)

// Registry coordinates session state between the store and the two buses.
type Registry struct {
	sessions   domain.SessionStore
	users      domain.UserDirectory
	sessionBus *bus.Bus
	siteBus    *bus.Bus
	clock      clockwork.Clock
}

// New creates a Registry. sessionBus is keyed by session id; siteBus carries
// the site-wide refresh notifications.
func New(sessions domain.SessionStore, users domain.UserDirectory, sessionBus, siteBus *bus.Bus, clock clockwork.Clock) *Registry {
	return &Registry{
		sessions:   sessions,
		users:      users,
		sessionBus: sessionBus,
		siteBus:    siteBus,
		clock:      clock,
	}
}

// Ensure joins creatorID to the session, creating it when absent with the
// creator as owner and sole participant. Returns whether this call created
// the session. A terminated session rejects the join with ErrSessionClosed.
func (r *Registry) Ensure(ctx context.Context, sessionID, creatorID string, isPublic bool) (bool, error) {
	sess, created, err := r.sessions.FindOrCreate(ctx, sessionID, creatorID, isPublic, r.clock.Now())
	if err != nil {
		return false, err
	}

	if created {
		metrics.SessionsCreatedTotal.Inc()
		slog.Info("Session created", "session_id", sessionID, "owner", creatorID)
		r.siteBus.Publish(bus.SiteKey, domain.SiteRefresh{
			Reason:    domain.RefreshReasonSessionCreate,
			SessionID: sessionID,
		})
		return true, nil
	}

	if !sess.IsActive {
		return false, domain.ErrSessionClosed
	}

	if !sess.HasParticipant(creatorID) {
		if err := r.AddParticipant(ctx, sessionID, creatorID); err != nil {
			return false, err
		}
	}
	return false, nil
}

// AddParticipant idempotently appends userID and publishes a session-scoped
// join event only when the participant set actually changed.
func (r *Registry) AddParticipant(ctx context.Context, sessionID, userID string) error {
	changed, err := r.sessions.AddParticipant(ctx, sessionID, userID, r.clock.Now())
	if err != nil {
		return err
	}
	if !changed {
		// Either already a member, or the session is gone/terminated.
		sess, err := r.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if !sess.IsActive {
			return domain.ErrSessionClosed
		}
		return nil
	}

	r.sessionBus.Publish(sessionID, domain.Joined{UserID: userID})
	return nil
}

// RemoveParticipant removes userID from the session. Removing a non-member
// or leaving an unknown session is a no-op.
func (r *Registry) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	changed, err := r.sessions.RemoveParticipant(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if changed {
		r.sessionBus.Publish(sessionID, domain.Joined{LeaverID: userID})
	}
	return nil
}

// UpdateSettings applies a settings patch on behalf of callerID. Only the
// owner or a privileged caller may change settings. isActive=false is the
// one-way transition to TERMINATED; its terminate event is the last event
// published on the session key, and the store's conditional patch guarantees
// at most one caller publishes it even under concurrent terminates.
func (r *Registry) UpdateSettings(ctx context.Context, sessionID, callerID string, callerIsPrivileged bool, patch domain.SessionPatch) error {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != callerID && !callerIsPrivileged {
		return domain.ErrNotOwner
	}
	if !sess.IsActive {
		return domain.ErrSessionNotFound
	}

	if err := r.sessions.ApplyPatch(ctx, sessionID, patch, r.clock.Now()); err != nil {
		return err
	}

	terminating := patch.IsActive != nil && !*patch.IsActive

	if patch.CurrentTopicID != nil && !terminating {
		r.sessionBus.Publish(sessionID, domain.TopicUpdated{CurrentTopicID: *patch.CurrentTopicID})
	}
	if terminating {
		metrics.SessionsTerminatedTotal.Inc()
		slog.Info("Session terminated", "session_id", sessionID, "caller", callerID)
		r.sessionBus.Publish(sessionID, domain.Terminated{})
	}
	if patch.IsPublic != nil || terminating {
		r.siteBus.Publish(bus.SiteKey, domain.SiteRefresh{
			Reason:    domain.RefreshReasonSessionUpdate,
			SessionID: sessionID,
		})
	}
	return nil
}

// Get returns the participant view of an active session. Terminated and
// unknown sessions are indistinguishable to callers: both are not found.
func (r *Registry) Get(ctx context.Context, sessionID string) (*domain.SessionView, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, domain.ErrSessionNotFound
	}

	ids := make([]string, 0, len(sess.Participants)+1)
	for _, p := range sess.Participants {
		ids = append(ids, p.UserID)
	}
	ids = append(ids, sess.OwnerID)

	names, err := r.users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &domain.SessionView{
		SessionID:      sess.SessionID,
		OwnerID:        sess.OwnerID,
		OwnerName:      displayName(names, sess.OwnerID),
		IsPublic:       sess.IsPublic,
		CurrentTopicID: sess.CurrentTopicID,
		Participants:   make([]domain.ParticipantView, 0, len(sess.Participants)),
	}
	for _, p := range sess.Participants {
		view.Participants = append(view.Participants, domain.ParticipantView{
			UserID: p.UserID,
			Name:   displayName(names, p.UserID),
		})
	}
	return view, nil
}

// ListPublic returns the site-level listing of joinable sessions.
func (r *Registry) ListPublic(ctx context.Context) ([]domain.PublicSession, error) {
	sessions, err := r.sessions.ListPublicActive(ctx)
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ownerIDs = append(ownerIDs, s.OwnerID)
	}
	names, err := r.users.DisplayNames(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PublicSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, domain.PublicSession{
			SessionID:        s.SessionID,
			OwnerName:        displayName(names, s.OwnerID),
			ParticipantCount: len(s.Participants),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func displayName(names map[string]string, userID string) string {
	if name, ok := names[userID]; ok && name != "" {
		return name
	}
	return "Anonymous Host"
}
