package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/chukwukap/waffles/internal/events"
	"github.com/chukwukap/waffles/internal/gameclock"
	"github.com/chukwukap/waffles/internal/models"
)

type memGameRepo struct {
	mu   sync.Mutex
	cfgs map[uuid.UUID]*models.GameConfig
}

func (r *memGameRepo) GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfgs[gameID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	ch     chan *events.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{ch: make(chan *events.Event, 100)}
}

func (p *recordingPublisher) Publish(ctx context.Context, event *events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	p.ch <- event
	return nil
}

type recordingMarker struct {
	mu    sync.Mutex
	games []uuid.UUID
}

func (m *recordingMarker) MarkSettlementEligible(ctx context.Context, gameID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, gameID)
	return nil
}

type EngineTestSuite struct {
	suite.Suite
	clock     *clockwork.FakeClock
	repo      *memGameRepo
	publisher *recordingPublisher
	marker    *recordingMarker
	engine    *Engine

	startsAt time.Time
	gameID   uuid.UUID
}

func (s *EngineTestSuite) SetupTest() {
	s.startsAt = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	s.clock = clockwork.NewFakeClockAt(s.startsAt.Add(-5 * time.Second))
	s.repo = &memGameRepo{cfgs: make(map[uuid.UUID]*models.GameConfig)}
	s.publisher = newRecordingPublisher()
	s.marker = &recordingMarker{}

	s.gameID = uuid.New()
	cfg := &models.GameConfig{ID: s.gameID, StartsAt: s.startsAt, RoundBreakSec: 5}
	for i := 0; i < 2; i++ {
		round := i // one break between the two questions
		cfg.Questions = append(cfg.Questions, models.Question{
			ID:          uuid.New(),
			GameID:      s.gameID,
			Index:       i,
			RoundIndex:  round,
			DurationSec: 10,
			BasePoints:  1000,
		})
	}
	s.repo.cfgs[s.gameID] = cfg

	engine, err := NewEngine(s.repo, s.publisher, s.marker, s.clock)
	s.Require().NoError(err)
	s.engine = engine
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) TestWatchRejectsMalformedConfig() {
	badID := uuid.New()
	s.repo.cfgs[badID] = &models.GameConfig{
		ID:       badID,
		StartsAt: s.startsAt,
		Questions: []models.Question{
			{ID: uuid.New(), Index: 0, DurationSec: -1, BasePoints: 100},
		},
	}

	err := s.engine.Watch(context.Background(), badID)
	var cfgErr *gameclock.ConfigurationError
	s.Require().ErrorAs(err, &cfgErr)
}

func (s *EngineTestSuite) TestEvaluateEmitsTransitionsInOrder() {
	ctx := context.Background()
	s.Require().NoError(s.engine.Watch(ctx, s.gameID))

	// Scheduled is broadcast once on first evaluation.
	s.engine.evaluate(ctx)
	s.Require().Len(s.publisher.events, 1)
	s.Equal(events.TypePhaseChanged, s.publisher.events[0].Type)

	// Re-evaluating with no phase change emits nothing.
	s.engine.evaluate(ctx)
	s.Require().Len(s.publisher.events, 1)

	// Walk the timeline: Q0 at +0, break at +10s, Q1 at +15s, end at +25s.
	s.clock.Advance(5 * time.Second)
	s.engine.evaluate(ctx)
	s.clock.Advance(12 * time.Second)
	s.engine.evaluate(ctx)
	s.clock.Advance(4 * time.Second)
	s.engine.evaluate(ctx)
	s.clock.Advance(10 * time.Second)
	s.engine.evaluate(ctx)

	var kinds []string
	for _, e := range s.publisher.events {
		if e.Type == events.TypePhaseChanged {
			kinds = append(kinds, string(e.Type))
		}
	}
	// SCHEDULED, QUESTION(0), BREAK(0), QUESTION(1), ENDED
	s.Len(kinds, 5)

	last := s.publisher.events[len(s.publisher.events)-1]
	s.Equal(events.TypeGameEnded, last.Type)
	s.Equal([]uuid.UUID{s.gameID}, s.marker.games)

	// The ended game is no longer watched.
	_, ok := s.engine.nextBoundary()
	s.False(ok)
}

func (s *EngineTestSuite) TestRunLoopFollowsBoundaries() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Require().NoError(s.engine.Watch(ctx, s.gameID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.engine.Run(ctx)
	}()

	waitType := func(want events.Type) *events.Event {
		s.T().Helper()
		for {
			select {
			case e := <-s.publisher.ch:
				if e.Type == want {
					return e
				}
			case <-time.After(2 * time.Second):
				s.FailNowf("timed out", "waiting for %s", want)
				return nil
			}
		}
	}

	waitType(events.TypePhaseChanged) // SCHEDULED on startup

	// Each advance crosses exactly one boundary; the engine's timer should
	// wake and broadcast without any external nudge.
	s.clock.BlockUntil(1)
	s.clock.Advance(5 * time.Second) // into question 0
	e := waitType(events.TypePhaseChanged)
	assert.Equal(s.T(), s.gameID.String(), e.GameID)

	s.clock.BlockUntil(1)
	s.clock.Advance(10 * time.Second) // into the round break
	waitType(events.TypePhaseChanged)

	s.clock.BlockUntil(1)
	s.clock.Advance(5 * time.Second) // into question 1
	waitType(events.TypePhaseChanged)

	s.clock.BlockUntil(1)
	s.clock.Advance(10 * time.Second) // past the end
	waitType(events.TypeGameEnded)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(s.T(), "engine did not shut down")
	}
}
