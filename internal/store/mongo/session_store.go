package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// SessionStore implements domain.SessionStore backed by the sessions collection.
type SessionStore struct {
	coll *mongo.Collection
}

// NewSessionStore creates a SessionStore from the shared DB handle.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{coll: db.db.Collection("sessions")}
}

// FindOrCreate upserts by sessionId. The unique index plus $setOnInsert make
// this the serialization point for concurrent creates: exactly one caller
// inserts, everyone else sees the existing document. Returning the pre-image
// tells the two apart - no document before the update means we inserted.
func (s *SessionStore) FindOrCreate(ctx context.Context, sessionID, ownerID string, isPublic bool, now time.Time) (*domain.Session, bool, error) {
	inserted := domain.Session{
		SessionID:    sessionID,
		OwnerID:      ownerID,
		Participants: []domain.Participant{{UserID: ownerID, JoinedAt: now}},
		IsActive:     true,
		IsPublic:     isPublic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"sessionId":    inserted.SessionID,
			"owner":        inserted.OwnerID,
			"participants": inserted.Participants,
			"isActive":     inserted.IsActive,
			"isPublic":     inserted.IsPublic,
			"createdAt":    inserted.CreatedAt,
			"updatedAt":    inserted.UpdatedAt,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	var existing domain.Session
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"sessionId": sessionID}, update, opts).Decode(&existing)
	if isNoDocuments(err) {
		return &inserted, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find-or-create session: %w", err)
	}
	return &existing, false, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	err := s.coll.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&sess)
	if isNoDocuments(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// AddParticipant filters on isActive and absence of the user, so a terminated
// session never gains members and a repeat join changes nothing.
func (s *SessionStore) AddParticipant(ctx context.Context, sessionID, userID string, now time.Time) (bool, error) {
	filter := bson.M{
		"sessionId":         sessionID,
		"isActive":          true,
		"participants.user": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{"participants": domain.Participant{UserID: userID, JoinedAt: now}},
		"$set":  bson.M{"updatedAt": now},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *SessionStore) RemoveParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	update := bson.M{
		"$pull": bson.M{"participants": bson.M{"user": userID}},
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"sessionId": sessionID}, update)
	if err != nil {
		return false, fmt.Errorf("failed to remove participant: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// ApplyPatch applies the non-nil patch fields. A terminating patch filters on
// isActive so concurrent terminates serialize at the document: exactly one
// caller flips the flag, the rest get ErrSessionNotFound. Same discipline as
// FindOrCreate for the create race.
func (s *SessionStore) ApplyPatch(ctx context.Context, sessionID string, patch domain.SessionPatch, now time.Time) error {
	filter := bson.M{"sessionId": sessionID}
	set := bson.M{"updatedAt": now}
	if patch.IsPublic != nil {
		set["isPublic"] = *patch.IsPublic
	}
	if patch.CurrentTopicID != nil {
		set["currentTopicId"] = *patch.CurrentTopicID
	}
	if patch.IsActive != nil && !*patch.IsActive {
		set["isActive"] = false
		filter["isActive"] = true
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to patch session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) ListPublicActive(ctx context.Context) ([]domain.Session, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"isActive": true, "isPublic": true},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list public sessions: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var sessions []domain.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode public sessions: %w", err)
	}
	return sessions, nil
}
