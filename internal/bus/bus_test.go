package bus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/pkg/types"
)

func TestPublishFansOutToMatchSubscribers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	matchID, otherID := uuid.New(), uuid.New()

	a := r.Subscribe(matchID)
	b := r.Subscribe(matchID)
	c := r.Subscribe(otherID)
	defer a.Close()
	defer b.Close()
	defer c.Close()

	r.Publish(matchID, types.Envelope{Kind: types.KindSignal, Signal: types.SignalTurnFinished})

	for _, sub := range []*Subscription{a, b} {
		select {
		case env := <-sub.C():
			assert.Equal(t, types.SignalTurnFinished, env.Signal)
		default:
			t.Fatal("subscriber did not receive the envelope")
		}
	}
	select {
	case <-c.C():
		t.Fatal("envelope leaked across matches")
	default:
	}
}

func TestPublishWithoutTopicIsDropped(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	// Nobody subscribed; must not panic or retain anything.
	r.Publish(uuid.New(), types.Envelope{Kind: types.KindSignal, Signal: types.SignalStart})
	assert.Nil(t, r.CachedSnapshot(uuid.New()))
}

func TestTopicLifecycle(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	matchID := uuid.New()

	a := r.Subscribe(matchID)
	b := r.Subscribe(matchID)
	assert.Equal(t, 2, r.Subscribers(matchID))

	a.Close()
	assert.Equal(t, 1, r.Subscribers(matchID))

	b.Close()
	assert.Equal(t, 0, r.Subscribers(matchID))

	// The topic is gone, so the cached snapshot is too.
	assert.Nil(t, r.CachedSnapshot(matchID))

	// Closing again is a no-op.
	a.Close()
}

func TestCloseDoesNotDisturbRemainingSubscribers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	matchID := uuid.New()

	a := r.Subscribe(matchID)
	b := r.Subscribe(matchID)
	a.Close()

	r.Publish(matchID, types.Envelope{Kind: types.KindSignal, Signal: types.SignalStart})
	select {
	case env := <-b.C():
		assert.Equal(t, types.SignalStart, env.Signal)
	default:
		t.Fatal("surviving subscriber missed the envelope")
	}
	b.Close()
}

func TestSlowSubscriberIsMarkedLagged(t *testing.T) {
	r := NewRegistry(zap.NewNop(), WithBuffer(1))
	matchID := uuid.New()
	sub := r.Subscribe(matchID)
	defer sub.Close()

	r.Publish(matchID, types.Envelope{Kind: types.KindSignal, Signal: types.SignalTurnFinished})
	r.Publish(matchID, types.Envelope{Kind: types.KindSignal, Signal: types.SignalTurnFinished})

	assert.True(t, sub.Lagged())
	// Lagged reads clear the flag.
	assert.False(t, sub.Lagged())

	// The first envelope is still deliverable.
	select {
	case <-sub.C():
	default:
		t.Fatal("buffered envelope lost")
	}
}

func TestSnapshotPublishRefreshesCache(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	matchID := uuid.New()
	sub := r.Subscribe(matchID)
	defer sub.Close()

	first := &types.Snapshot{MatchID: matchID, LastSequence: 1}
	second := &types.Snapshot{MatchID: matchID, LastSequence: 2}
	r.Publish(matchID, types.Envelope{Kind: types.KindSnapshot, Snapshot: first})
	r.Publish(matchID, types.Envelope{Kind: types.KindSnapshot, Snapshot: second})

	cached := r.CachedSnapshot(matchID)
	require.NotNil(t, cached)
	assert.Equal(t, 2, cached.LastSequence)
}
