package domain

import (
	"context"
	"time"
)

// Participant is one member of a session's ordered participant set.
type Participant struct {
	UserID   string    `bson:"user" json:"userId"`
	JoinedAt time.Time `bson:"joinedAt" json:"joinedAt"`
}

// Session is the live state of one discussion session. The session id is an
// opaque short code chosen by the creator's client, unique across the store.
type Session struct {
	SessionID      string        `bson:"sessionId"`
	OwnerID        string        `bson:"owner"`
	Participants   []Participant `bson:"participants"`
	IsActive       bool          `bson:"isActive"`
	IsPublic       bool          `bson:"isPublic"`
	CurrentTopicID *int          `bson:"currentTopicId,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt"`
}

// HasParticipant reports whether userID is in the participant set.
func (s *Session) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SessionPatch is a partial settings update. Nil fields are left untouched.
// IsActive can only be flipped to false; a terminated session never comes back.
type SessionPatch struct {
	IsPublic       *bool
	CurrentTopicID *int
	IsActive       *bool
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.IsPublic == nil && p.CurrentTopicID == nil && p.IsActive == nil
}

// SessionView is the read-only projection served to clients: the participant
// list joined with display names, never independently mutated.
type SessionView struct {
	SessionID      string            `json:"sessionId"`
	OwnerID        string            `json:"owner"`
	OwnerName      string            `json:"ownerName"`
	IsPublic       bool              `json:"isPublic"`
	CurrentTopicID *int              `json:"currentTopicId,omitempty"`
	Participants   []ParticipantView `json:"participants"`
}

// ParticipantView is one participant with display fields resolved.
type ParticipantView struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

// PublicSession is the site-level listing entry for a joinable session.
type PublicSession struct {
	SessionID        string `json:"sessionId"`
	OwnerName        string `json:"ownerName"`
	ParticipantCount int    `json:"participantCount"`
}

// SessionStore persists sessions. Implementations must make FindOrCreate an
// atomic create-if-absent: it is the serialization point for concurrent
// creates of the same session id.
type SessionStore interface {
	// FindOrCreate returns the session for sessionID, creating it with the
	// given owner as sole participant when absent. The created flag tells
	// the caller whether this call performed the insert.
	FindOrCreate(ctx context.Context, sessionID, ownerID string, isPublic bool, now time.Time) (*Session, bool, error)

	// Get returns ErrSessionNotFound when no session exists for sessionID.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// AddParticipant appends userID to an active session's participant set if
	// absent. Returns whether the set actually changed. Terminated sessions
	// never gain participants.
	AddParticipant(ctx context.Context, sessionID, userID string, now time.Time) (bool, error)

	// RemoveParticipant removes userID from the participant set. Removing a
	// non-member is a no-op and reports no change.
	RemoveParticipant(ctx context.Context, sessionID, userID string) (bool, error)

	// ApplyPatch applies the non-nil fields of patch to the session. A
	// terminating patch only matches a still-active session, so concurrent
	// terminates serialize here: exactly one caller performs the flip, every
	// other caller gets ErrSessionNotFound.
	ApplyPatch(ctx context.Context, sessionID string, patch SessionPatch, now time.Time) error

	// ListPublicActive returns all sessions that are both active and public.
	ListPublicActive(ctx context.Context) ([]Session, error)
}

// UserDirectory resolves display names for the participant view. User
// management itself lives outside this subsystem.
type UserDirectory interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}
