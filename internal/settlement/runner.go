package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = 15 * time.Second

// EligibilityStore lists games the session engine has flagged for
// settlement. A game leaves the list once it is marked settled.
type EligibilityStore interface {
	ListSettlementEligible(ctx context.Context) ([]uuid.UUID, error)
}

// Runner polls for ended games and settles them one at a time. Failed runs
// stay eligible and are picked up again on the next poll.
type Runner struct {
	service  *Service
	store    EligibilityStore
	clock    clockwork.Clock
	interval time.Duration
}

// NewRunner creates a settlement runner.
func NewRunner(service *Service, store EligibilityStore, clock clockwork.Clock, interval time.Duration) (*Runner, error) {
	if service == nil {
		return nil, errors.New("settlement service cannot be nil")
	}
	if store == nil {
		return nil, errors.New("eligibility store cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Runner{service: service, store: store, clock: clock, interval: interval}, nil
}

// Run polls until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Dur("interval", r.interval).Msg("settlement runner started")
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sweep(ctx)
		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			log.Info().Msg("settlement runner shutting down")
			return ctx.Err()
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	gameIDs, err := r.store.ListSettlementEligible(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list settlement-eligible games")
		return
	}
	for _, gameID := range gameIDs {
		if ctx.Err() != nil {
			return
		}
		report, err := r.service.SettleGame(ctx, gameID)
		if err != nil {
			log.Error().Err(err).Str("game_id", gameID.String()).Msg("settlement run failed")
			continue
		}
		if report.FailedCount > 0 {
			log.Warn().
				Str("game_id", gameID.String()).
				Int("failed", report.FailedCount).
				Msg("settlement run left unpaid winners, game stays eligible")
		}
	}
}
