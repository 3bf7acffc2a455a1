// Package ledger enforces the global single-active-vote invariant.
//
// A user holds at most one vote across the whole topic collection. Moving a
// vote is remove-then-add: the removal must land before the add is attempted,
// so a crash in between loses a vote but can never double-vote.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/metrics"
)

// Ledger processes vote requests against the topic store.
type Ledger struct {
	topics  domain.TopicStore
	siteBus *bus.Bus

	// Per-user locks linearize the remove-then-add sequence with respect to
	// other vote requests from the same user.
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// New creates a Ledger publishing vote notifications on siteBus.
func New(topics domain.TopicStore, siteBus *bus.Bus) *Ledger {
	return &Ledger{
		topics:  topics,
		siteBus: siteBus,
		users:   make(map[string]*sync.Mutex),
	}
}

// CastVote records userID's vote for topicID and returns the resulting
// topic. Re-voting the current topic is an idempotent no-op; voting while
// holding a vote elsewhere moves it. ErrTopicNotFound when the target topic
// does not exist.
func (l *Ledger) CastVote(ctx context.Context, userID string, topicID int) (*domain.Topic, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := l.topics.FindByVoter(ctx, userID)
	switch {
	case err == nil:
		if current.ID == topicID {
			metrics.VotesProcessedTotal.WithLabelValues("noop").Inc()
			return current, nil
		}
		// Remove before add: losing a vote beats double-voting.
		if err := l.topics.RemoveVote(ctx, current.ID, userID); err != nil {
			metrics.VotesProcessedTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	case errors.Is(err, domain.ErrVoteNotFound):
		// First vote, nothing to move.
	default:
		metrics.VotesProcessedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	topic, err := l.topics.AddVote(ctx, topicID, userID)
	if err != nil {
		metrics.VotesProcessedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	outcome := "cast"
	if current != nil {
		outcome = "moved"
	}
	metrics.VotesProcessedTotal.WithLabelValues(outcome).Inc()
	slog.Debug("Vote recorded", "user_id", userID, "topic_id", topicID, "outcome", outcome)

	l.siteBus.Publish(bus.SiteKey, domain.SiteRefresh{
		Reason:  domain.RefreshReasonVote,
		TopicID: topicID,
	})
	return topic, nil
}

// VotedTopicID returns the id of the topic currently holding userID's vote,
// or ok=false when the user has no active vote.
func (l *Ledger) VotedTopicID(ctx context.Context, userID string) (int, bool, error) {
	topic, err := l.topics.FindByVoter(ctx, userID)
	if errors.Is(err, domain.ErrVoteNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return topic.ID, true, nil
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.users[userID] = lock
	}
	return lock
}
