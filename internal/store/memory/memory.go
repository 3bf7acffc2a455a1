// Package memory provides in-memory store implementations.
//
// Used by unit tests and local development. All operations are serialized by
// one mutex per store, which makes FindOrCreate a true atomic create-if-absent
// just like the Mongo upsert it stands in for.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// SessionStore is an in-memory domain.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *SessionStore) FindOrCreate(_ context.Context, sessionID, ownerID string, isPublic bool, now time.Time) (*domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		return cloneSession(existing), false, nil
	}

	created := &domain.Session{
		SessionID:    sessionID,
		OwnerID:      ownerID,
		Participants: []domain.Participant{{UserID: ownerID, JoinedAt: now}},
		IsActive:     true,
		IsPublic:     isPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.sessions[sessionID] = created
	return cloneSession(created), true, nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionStore) AddParticipant(_ context.Context, sessionID, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || !sess.IsActive || sess.HasParticipant(userID) {
		return false, nil
	}
	sess.Participants = append(sess.Participants, domain.Participant{UserID: userID, JoinedAt: now})
	sess.UpdatedAt = now
	return true, nil
}

func (s *SessionStore) RemoveParticipant(_ context.Context, sessionID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	for i, p := range sess.Participants {
		if p.UserID == userID {
			sess.Participants = append(sess.Participants[:i], sess.Participants[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *SessionStore) ApplyPatch(_ context.Context, sessionID string, patch domain.SessionPatch, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if patch.IsActive != nil && !*patch.IsActive {
		// Only one caller gets to flip the flag.
		if !sess.IsActive {
			return domain.ErrSessionNotFound
		}
		sess.IsActive = false
	}
	if patch.IsPublic != nil {
		sess.IsPublic = *patch.IsPublic
	}
	if patch.CurrentTopicID != nil {
		id := *patch.CurrentTopicID
		sess.CurrentTopicID = &id
	}
	sess.UpdatedAt = now
	return nil
}

func (s *SessionStore) ListPublicActive(_ context.Context) ([]domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.IsActive && sess.IsPublic {
			out = append(out, *cloneSession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func cloneSession(s *domain.Session) *domain.Session {
	out := *s
	out.Participants = append([]domain.Participant(nil), s.Participants...)
	if s.CurrentTopicID != nil {
		id := *s.CurrentTopicID
		out.CurrentTopicID = &id
	}
	return &out
}

// TopicStore is an in-memory domain.TopicStore.
type TopicStore struct {
	mu     sync.Mutex
	topics map[int]*domain.Topic
}

func NewTopicStore() *TopicStore {
	return &TopicStore{topics: make(map[int]*domain.Topic)}
}

// Seed loads topics directly, for tests.
func (s *TopicStore) Seed(topics ...domain.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range topics {
		t := topics[i]
		s.topics[t.ID] = &t
	}
}

func (s *TopicStore) Get(_ context.Context, topicID int) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[topicID]
	if !ok {
		return nil, domain.ErrTopicNotFound
	}
	return cloneTopic(t), nil
}

func (s *TopicStore) FindByVoter(_ context.Context, userID string) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.topics {
		if t.HasVoter(userID) {
			return cloneTopic(t), nil
		}
	}
	return nil, domain.ErrVoteNotFound
}

func (s *TopicStore) RemoveVote(_ context.Context, topicID int, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[topicID]
	if !ok {
		return domain.ErrTopicNotFound
	}
	for i, v := range t.VotedBy {
		if v == userID {
			t.VotedBy = append(t.VotedBy[:i], t.VotedBy[i+1:]...)
			t.Votes--
			break
		}
	}
	return nil
}

func (s *TopicStore) AddVote(_ context.Context, topicID int, userID string) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[topicID]
	if !ok {
		return nil, domain.ErrTopicNotFound
	}
	t.VotedBy = append(t.VotedBy, userID)
	t.Votes++
	return cloneTopic(t), nil
}

func (s *TopicStore) ListApproved(_ context.Context) ([]domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Topic
	for _, t := range s.topics {
		if t.Status == domain.TopicStatusApproved {
			out = append(out, *cloneTopic(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *TopicStore) WeeklyPick(_ context.Context) (*domain.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.topics {
		if t.WeeklyPick && t.Status == domain.TopicStatusApproved {
			return cloneTopic(t), nil
		}
	}
	return nil, domain.ErrTopicNotFound
}

func (s *TopicStore) Upsert(_ context.Context, topic domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic.ID] = &topic
	return nil
}

func cloneTopic(t *domain.Topic) *domain.Topic {
	out := *t
	out.VotedBy = append([]string(nil), t.VotedBy...)
	out.Tags = append([]string(nil), t.Tags...)
	return &out
}

// UserDirectory is an in-memory domain.UserDirectory.
type UserDirectory struct {
	mu    sync.Mutex
	names map[string]string
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{names: make(map[string]string)}
}

// SetName registers a display name for a user id.
func (d *UserDirectory) SetName(userID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[userID] = name
}

func (d *UserDirectory) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}
