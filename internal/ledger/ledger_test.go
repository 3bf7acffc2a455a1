package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/store/memory"
)

func testLedger(t *testing.T, topicIDs ...int) (*Ledger, *memory.TopicStore, *bus.Bus) {
	t.Helper()

	store := memory.NewTopicStore()
	for _, id := range topicIDs {
		store.Seed(domain.Topic{ID: id, Title: "topic", Status: domain.TopicStatusApproved})
	}
	siteBus := bus.New("site")
	return New(store, siteBus), store, siteBus
}

// assertInvariant checks votes == |votedBy| for every topic and that no user
// appears in more than one voter set.
func assertInvariant(t *testing.T, store *memory.TopicStore, topicIDs ...int) {
	t.Helper()

	seen := make(map[string]int)
	for _, id := range topicIDs {
		topic, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, len(topic.VotedBy), topic.Votes, "topic %d vote count drifted", id)
		for _, userID := range topic.VotedBy {
			seen[userID]++
			assert.LessOrEqual(t, seen[userID], 1, "user %s holds more than one vote", userID)
		}
	}
}

func TestCastVote_FirstVote(t *testing.T) {
	l, store, _ := testLedger(t, 1)

	topic, err := l.CastVote(context.Background(), "user-a", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, topic.Votes)
	assert.Equal(t, []string{"user-a"}, topic.VotedBy)
	assertInvariant(t, store, 1)
}

func TestCastVote_MoveVote(t *testing.T) {
	l, store, _ := testLedger(t, 1, 2)
	ctx := context.Background()

	// user A votes for topic 1: 0 -> 1
	topic1, err := l.CastVote(ctx, "user-a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, topic1.Votes)

	// user A votes for topic 2: topic1 back to 0, topic2 to 1
	topic2, err := l.CastVote(ctx, "user-a", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, topic2.Votes)

	topic1After, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, topic1After.Votes)
	assert.Empty(t, topic1After.VotedBy)

	// user A votes for topic 2 again: unchanged
	topic2Again, err := l.CastVote(ctx, "user-a", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, topic2Again.Votes)

	assertInvariant(t, store, 1, 2)
}

func TestCastVote_RevoteIsNoop(t *testing.T) {
	l, store, _ := testLedger(t, 1)
	ctx := context.Background()

	first, err := l.CastVote(ctx, "user-a", 1)
	require.NoError(t, err)
	second, err := l.CastVote(ctx, "user-a", 1)
	require.NoError(t, err)

	assert.Equal(t, first.Votes, second.Votes)
	assertInvariant(t, store, 1)
}

func TestCastVote_UnknownTopic(t *testing.T) {
	l, _, _ := testLedger(t, 1)

	_, err := l.CastVote(context.Background(), "user-a", 99)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestCastVote_PublishesSiteNotification(t *testing.T) {
	l, _, siteBus := testLedger(t, 1)

	events, cancel := siteBus.Subscribe(bus.SiteKey)
	t.Cleanup(cancel)

	_, err := l.CastVote(context.Background(), "user-a", 1)
	require.NoError(t, err)

	select {
	case ev := <-events:
		refresh, ok := ev.(domain.SiteRefresh)
		require.True(t, ok, "expected SiteRefresh, got %T", ev)
		assert.Equal(t, domain.RefreshReasonVote, refresh.Reason)
		assert.Equal(t, 1, refresh.TopicID)
	case <-time.After(time.Second):
		t.Fatal("vote notification not published")
	}
}

func TestCastVote_ConcurrentSameUser(t *testing.T) {
	topicIDs := []int{1, 2, 3}
	l, store, _ := testLedger(t, topicIDs...)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		topicID := topicIDs[i%len(topicIDs)]
		go func() {
			defer wg.Done()
			_, err := l.CastVote(ctx, "user-a", topicID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Exactly one vote survives, on whichever topic won the race.
	assertInvariant(t, store, topicIDs...)
	total := 0
	for _, id := range topicIDs {
		topic, err := store.Get(ctx, id)
		require.NoError(t, err)
		total += topic.Votes
	}
	assert.Equal(t, 1, total)
}

func TestCastVote_ConcurrentDistinctUsers(t *testing.T) {
	l, store, _ := testLedger(t, 1, 2)
	ctx := context.Background()

	users := []string{"user-a", "user-b", "user-c", "user-d"}
	var wg sync.WaitGroup
	for _, userID := range users {
		for _, topicID := range []int{1, 2, 1} {
			wg.Add(1)
			go func(userID string, topicID int) {
				defer wg.Done()
				_, err := l.CastVote(ctx, userID, topicID)
				assert.NoError(t, err)
			}(userID, topicID)
		}
	}
	wg.Wait()

	assertInvariant(t, store, 1, 2)

	topic1, err := store.Get(ctx, 1)
	require.NoError(t, err)
	topic2, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, len(users), topic1.Votes+topic2.Votes, "every user holds exactly one vote")
}

func TestVotedTopicID(t *testing.T) {
	l, _, _ := testLedger(t, 1)
	ctx := context.Background()

	_, voted, err := l.VotedTopicID(ctx, "user-a")
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = l.CastVote(ctx, "user-a", 1)
	require.NoError(t, err)

	id, voted, err := l.VotedTopicID(ctx, "user-a")
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, 1, id)
}
