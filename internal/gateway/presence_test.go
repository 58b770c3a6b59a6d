package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/chukwukap/waffles/internal/events"
)

type PresenceTestSuite struct {
	suite.Suite
	mr       *miniredis.Miniredis
	client   *redis.Client
	clock    *clockwork.FakeClock
	presence *Presence
	changes  atomic.Int64

	gameID   uuid.UUID
	playerID uuid.UUID
}

func (s *PresenceTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.clock = clockwork.NewFakeClock()
	s.changes.Store(0)

	presence, err := NewPresence(&PresenceConfig{
		RedisClient:    s.client,
		ReconnectGrace: 5 * time.Second,
		Clock:          s.clock,
		OnChange: func(gameID uuid.UUID, count int64) {
			s.changes.Add(1)
		},
	})
	s.Require().NoError(err)
	s.presence = presence

	s.gameID = uuid.New()
	s.playerID = uuid.New()
}

func (s *PresenceTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestPresenceTestSuite(t *testing.T) {
	suite.Run(t, new(PresenceTestSuite))
}

func (s *PresenceTestSuite) count() int64 {
	count, err := s.presence.Count(context.Background(), s.gameID)
	s.Require().NoError(err)
	return count
}

func (s *PresenceTestSuite) TestConnectIncrements() {
	count, err := s.presence.Connect(context.Background(), s.gameID, s.playerID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	_, err = s.presence.Connect(context.Background(), s.gameID, uuid.New())
	s.Require().NoError(err)
	s.Equal(int64(2), s.count())
}

func (s *PresenceTestSuite) TestDisconnectDecrementsAfterGrace() {
	_, err := s.presence.Connect(context.Background(), s.gameID, s.playerID)
	s.Require().NoError(err)

	s.presence.Disconnect(context.Background(), s.gameID, s.playerID)
	s.Equal(int64(1), s.count(), "count must hold during the grace window")

	s.clock.Advance(6 * time.Second)
	s.Require().Eventually(func() bool { return s.count() == 0 }, time.Second, 10*time.Millisecond)
}

func (s *PresenceTestSuite) TestReconnectWithinGraceDoesNotDoubleCount() {
	_, err := s.presence.Connect(context.Background(), s.gameID, s.playerID)
	s.Require().NoError(err)

	s.presence.Disconnect(context.Background(), s.gameID, s.playerID)
	s.clock.Advance(2 * time.Second)

	count, err := s.presence.Connect(context.Background(), s.gameID, s.playerID)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	// The cancelled decrement must never fire.
	s.clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	s.Equal(int64(1), s.count())
}

func (s *PresenceTestSuite) TestCountNeverGoesNegative() {
	s.presence.Disconnect(context.Background(), s.gameID, s.playerID)
	s.clock.Advance(6 * time.Second)
	s.Require().Eventually(func() bool { return s.count() == 0 }, time.Second, 10*time.Millisecond)
}

func (s *PresenceTestSuite) TestSimultaneousConnectionsDecrementIndependently() {
	ctx := context.Background()
	_, err := s.presence.Connect(ctx, s.gameID, s.playerID)
	s.Require().NoError(err)
	_, err = s.presence.Connect(ctx, s.gameID, s.playerID)
	s.Require().NoError(err)
	s.Equal(int64(2), s.count())

	// Both tabs close; each pending decrement must fire.
	s.presence.Disconnect(ctx, s.gameID, s.playerID)
	s.presence.Disconnect(ctx, s.gameID, s.playerID)
	s.clock.Advance(6 * time.Second)
	s.Require().Eventually(func() bool { return s.count() == 0 }, time.Second, 10*time.Millisecond)
}

func (s *PresenceTestSuite) TestReconnectCancelsOnlyOnePendingDecrement() {
	ctx := context.Background()
	_, err := s.presence.Connect(ctx, s.gameID, s.playerID)
	s.Require().NoError(err)
	_, err = s.presence.Connect(ctx, s.gameID, s.playerID)
	s.Require().NoError(err)

	s.presence.Disconnect(ctx, s.gameID, s.playerID)
	s.presence.Disconnect(ctx, s.gameID, s.playerID)
	s.clock.Advance(2 * time.Second)

	count, err := s.presence.Connect(ctx, s.gameID, s.playerID)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	// The other closed connection still decrements.
	s.clock.Advance(10 * time.Second)
	s.Require().Eventually(func() bool { return s.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastOnChangePublishesCounts(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clock := clockwork.NewFakeClock()
	pub := &capturePublisher{}
	presence, err := NewPresence(&PresenceConfig{
		RedisClient:    client,
		ReconnectGrace: 5 * time.Second,
		Clock:          clock,
		OnChange:       BroadcastOnChange(pub, clock),
	})
	require.NoError(t, err)

	gameID, playerID := uuid.New(), uuid.New()
	_, err = presence.Connect(context.Background(), gameID, playerID)
	require.NoError(t, err)

	published := pub.all()
	require.Len(t, published, 1)
	require.Equal(t, events.TypePresenceChanged, published[0].Type)
	require.Equal(t, gameID.String(), published[0].GameID)

	var payload events.PresenceChangedPayload
	require.NoError(t, decodePayload(published[0], &payload))
	require.Equal(t, int64(1), payload.OnlineCount)

	presence.Disconnect(context.Background(), gameID, playerID)
	clock.Advance(6 * time.Second)
	require.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, decodePayload(pub.all()[1], &payload))
	require.Equal(t, int64(0), payload.OnlineCount)
}
