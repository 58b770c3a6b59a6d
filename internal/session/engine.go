// Package session drives the per-game lifecycle. There is no "advance"
// command anywhere: transitions are purely time-driven, every evaluation
// recomputes the phase from the wall clock, and the engine only exists to
// notice that the derived phase differs from the last broadcast one and to
// emit that transition.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/events"
	"github.com/chukwukap/waffles/internal/gameclock"
	"github.com/chukwukap/waffles/internal/models"
)

const idlePollInterval = 5 * time.Second

// GameRepository loads game configuration.
type GameRepository interface {
	GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error)
}

// EventPublisher pushes game events onto the bus for the gateway replicas.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// SettlementMarker flags a finished game as eligible for the out-of-band
// settlement runner.
type SettlementMarker interface {
	MarkSettlementEligible(ctx context.Context, gameID uuid.UUID) error
}

type watchedGame struct {
	cfg       *models.GameConfig
	lastPhase gameclock.Phase
	emitted   bool
}

// Engine watches live games and emits phase transitions.
type Engine struct {
	games      GameRepository
	publisher  EventPublisher
	settlement SettlementMarker
	clock      clockwork.Clock

	mu      sync.Mutex
	watched map[uuid.UUID]*watchedGame
	wakeCh  chan struct{}

	instanceID string
}

// NewEngine creates a session engine.
func NewEngine(games GameRepository, publisher EventPublisher, settlement SettlementMarker, clock clockwork.Clock) (*Engine, error) {
	if games == nil {
		return nil, errors.New("game repository cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("event publisher cannot be nil")
	}
	if settlement == nil {
		return nil, errors.New("settlement marker cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		games:      games,
		publisher:  publisher,
		settlement: settlement,
		clock:      clock,
		watched:    make(map[uuid.UUID]*watchedGame),
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8],
	}, nil
}

// Watch admits a game to the engine. Malformed configs are rejected here,
// never at phase evaluation time.
func (e *Engine) Watch(ctx context.Context, gameID uuid.UUID) error {
	cfg, err := e.games.GetGameConfig(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}
	if err := gameclock.ValidateConfig(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	e.watched[gameID] = &watchedGame{cfg: cfg}
	e.mu.Unlock()

	log.Info().
		Str("game_id", gameID.String()).
		Str("instance", e.instanceID).
		Time("starts_at", cfg.StartsAt).
		Int("questions", len(cfg.Questions)).
		Msg("watching game")

	// Wake the scheduler in case this game's next boundary is sooner.
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Run loops until the context is cancelled, sleeping until the next phase
// boundary across all watched games and emitting transitions when it wakes.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Str("instance", e.instanceID).Msg("session engine started")

	timer := e.clock.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-e.wakeCh:
		default:
		}

		e.evaluate(ctx)

		wait := idlePollInterval
		if next, ok := e.nextBoundary(); ok {
			wait = next.Sub(e.clock.Now())
			if wait < 0 {
				wait = 0
			}
		}

		timer.Reset(wait)
		select {
		case <-timer.Chan():
		case <-e.wakeCh:
		case <-ctx.Done():
			log.Info().Str("instance", e.instanceID).Msg("session engine shutting down")
			return nil
		}
	}
}

// evaluate recomputes each watched game's phase and emits a transition for
// every game whose phase differs from the last broadcast one.
func (e *Engine) evaluate(ctx context.Context) {
	now := e.clock.Now()

	e.mu.Lock()
	type pending struct {
		id    uuid.UUID
		g     *watchedGame
		phase gameclock.Phase
	}
	var due []pending
	for id, g := range e.watched {
		phase := gameclock.PhaseAt(g.cfg, now)
		if g.emitted && phase == g.lastPhase {
			continue
		}
		g.lastPhase = phase
		g.emitted = true
		due = append(due, pending{id: id, g: g, phase: phase})
		if phase.Kind == gameclock.PhaseEnded {
			delete(e.watched, id)
		}
	}
	e.mu.Unlock()

	for _, p := range due {
		e.emitTransition(ctx, p.id, p.g.cfg, p.phase, now)
	}
}

func (e *Engine) emitTransition(ctx context.Context, gameID uuid.UUID, cfg *models.GameConfig, phase gameclock.Phase, now time.Time) {
	payload := events.PhaseChangedPayload{
		Phase:            string(phase.Kind),
		QuestionIndex:    phase.Index,
		SecondsRemaining: gameclock.SecondsRemaining(cfg, now),
	}
	if deadline, ok := gameclock.NextBoundary(cfg, now); ok {
		payload.Deadline = &deadline
	}

	if err := e.publisher.Publish(ctx, events.New(gameID, events.TypePhaseChanged, payload, now)); err != nil {
		log.Error().Err(err).
			Str("game_id", gameID.String()).
			Str("phase", string(phase.Kind)).
			Msg("failed to publish phase transition")
	}

	log.Info().
		Str("game_id", gameID.String()).
		Str("instance", e.instanceID).
		Str("phase", string(phase.Kind)).
		Int("index", phase.Index).
		Msg("phase transition")

	if phase.Kind != gameclock.PhaseEnded {
		return
	}

	ended := events.GameEndedPayload{EndedAt: now}
	if err := e.publisher.Publish(ctx, events.New(gameID, events.TypeGameEnded, ended, now)); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to publish game end")
	}
	if err := e.settlement.MarkSettlementEligible(ctx, gameID); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("failed to mark game settlement-eligible")
	}
}

// nextBoundary returns the earliest upcoming phase boundary across watched
// games.
func (e *Engine) nextBoundary() (time.Time, bool) {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var earliest time.Time
	found := false
	for _, g := range e.watched {
		b, ok := gameclock.NextBoundary(g.cfg, now)
		if !ok {
			continue
		}
		if !found || b.Before(earliest) {
			earliest = b
			found = true
		}
	}
	return earliest, found
}
