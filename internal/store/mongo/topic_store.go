package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// TopicStore implements domain.TopicStore backed by the topics collection.
type TopicStore struct {
	coll *mongo.Collection
}

// NewTopicStore creates a TopicStore from the shared DB handle.
func NewTopicStore(db *DB) *TopicStore {
	return &TopicStore{coll: db.db.Collection("topics")}
}

func (s *TopicStore) Get(ctx context.Context, topicID int) (*domain.Topic, error) {
	var topic domain.Topic
	err := s.coll.FindOne(ctx, bson.M{"id": topicID}).Decode(&topic)
	if isNoDocuments(err) {
		return nil, domain.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	return &topic, nil
}

func (s *TopicStore) FindByVoter(ctx context.Context, userID string) (*domain.Topic, error) {
	var topic domain.Topic
	err := s.coll.FindOne(ctx, bson.M{"votedBy": userID}).Decode(&topic)
	if isNoDocuments(err) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	return &topic, nil
}

// RemoveVote pulls the voter and decrements the counter in one update, so
// votes == |votedBy| holds at every point an observer can see.
func (s *TopicStore) RemoveVote(ctx context.Context, topicID int, userID string) error {
	update := bson.M{
		"$pull": bson.M{"votedBy": userID},
		"$inc":  bson.M{"votes": -1},
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"id": topicID, "votedBy": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove vote: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTopicNotFound
	}
	return nil
}

func (s *TopicStore) AddVote(ctx context.Context, topicID int, userID string) (*domain.Topic, error) {
	update := bson.M{
		"$push": bson.M{"votedBy": userID},
		"$inc":  bson.M{"votes": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var topic domain.Topic
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"id": topicID}, update, opts).Decode(&topic)
	if isNoDocuments(err) {
		return nil, domain.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add vote: %w", err)
	}
	return &topic, nil
}

func (s *TopicStore) ListApproved(ctx context.Context) ([]domain.Topic, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"status": domain.TopicStatusApproved},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var topics []domain.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, fmt.Errorf("failed to decode topics: %w", err)
	}
	return topics, nil
}

func (s *TopicStore) WeeklyPick(ctx context.Context) (*domain.Topic, error) {
	var topic domain.Topic
	err := s.coll.FindOne(ctx, bson.M{"isActive": true, "status": domain.TopicStatusApproved}).Decode(&topic)
	if isNoDocuments(err) {
		return nil, domain.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly pick: %w", err)
	}
	return &topic, nil
}

func (s *TopicStore) Upsert(ctx context.Context, topic domain.Topic) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"id": topic.ID}, topic, opts); err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}
	return nil
}
