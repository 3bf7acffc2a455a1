package domain

import "context"

// Topic statuses as stored. Only approved topics are served to clients.
const (
	TopicStatusPending  = "pending"
	TopicStatusApproved = "approved"
	TopicStatusRejected = "rejected"
)

// Topic is one votable discussion topic. Votes must always equal
// len(VotedBy); the stores enforce this by mutating both in one update.
type Topic struct {
	ID         int      `bson:"id" json:"id"`
	Title      string   `bson:"en" json:"en"`
	Votes      int      `bson:"votes" json:"votes"`
	Flashcard  string   `bson:"flashcard" json:"flashcard"`
	Status     string   `bson:"status" json:"status"`
	WeeklyPick bool     `bson:"isActive" json:"isActive"`
	Tags       []string `bson:"tags,omitempty" json:"tags,omitempty"`
	VotedBy    []string `bson:"votedBy,omitempty" json:"-"`
}

// HasVoter reports whether userID is in the topic's voter set.
func (t *Topic) HasVoter(userID string) bool {
	for _, v := range t.VotedBy {
		if v == userID {
			return true
		}
	}
	return false
}

// TopicStore persists topics. RemoveVote and AddVote each mutate the voter
// set and the counter atomically so votes == |votedBy| holds after every
// store operation.
type TopicStore interface {
	// Get returns ErrTopicNotFound when no topic has the given id.
	Get(ctx context.Context, topicID int) (*Topic, error)

	// FindByVoter returns the topic currently holding userID's vote, or
	// ErrVoteNotFound when the user has no active vote anywhere.
	FindByVoter(ctx context.Context, userID string) (*Topic, error)

	// RemoveVote pulls userID from the topic's voter set and decrements the
	// counter in the same update.
	RemoveVote(ctx context.Context, topicID int, userID string) error

	// AddVote pushes userID onto the topic's voter set, increments the
	// counter, and returns the resulting topic. ErrTopicNotFound when the
	// target does not exist.
	AddVote(ctx context.Context, topicID int, userID string) (*Topic, error)

	// ListApproved returns all approved topics ordered by id.
	ListApproved(ctx context.Context) ([]Topic, error)

	// WeeklyPick returns the approved topic currently flagged as the weekly
	// pick, or ErrTopicNotFound when none is flagged.
	WeeklyPick(ctx context.Context) (*Topic, error)

	// Upsert inserts or replaces a topic by id. Used by seeding.
	Upsert(ctx context.Context, topic Topic) error
}
