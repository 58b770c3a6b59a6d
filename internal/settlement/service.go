// Package settlement pays out winners after a game ends. Every payout is
// idempotent: the persisted claim timestamp on the game-player record is the
// commit point, and the transfer reference is derived deterministically from
// that record's id, so a crashed or repeated run can never double-pay.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chukwukap/waffles/internal/chain"
	"github.com/chukwukap/waffles/internal/models"
)

const (
	defaultMaxAttempts    = 3
	defaultConfirmTimeout = 30 * time.Second
	defaultBackoffBase    = time.Second
)

// GameRepository is the game-level persistence settlement needs.
type GameRepository interface {
	GetGameConfig(ctx context.Context, gameID uuid.UUID) (*models.GameConfig, error)
	MarkGameSettled(ctx context.Context, gameID uuid.UUID) error
}

// ProgressRepository is the per-player persistence settlement needs.
//
// MarkClaimed must be conditional on the claim timestamp being unset and
// report whether this call set it. That single row update is the payout
// commit point.
type ProgressRepository interface {
	ListFinalStandings(ctx context.Context, gameID uuid.UUID) ([]*models.PlayerProgress, error)
	UpdateStanding(ctx context.Context, gamePlayerID uuid.UUID, rank int, prizeMinorUnits int64) error
	MarkClaimed(ctx context.Context, gamePlayerID uuid.UUID, txRef string, claimedAt time.Time) (claimed bool, err error)
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// Config holds settlement service configuration.
type Config struct {
	GameRepo       GameRepository
	ProgressRepo   ProgressRepository
	Chain          chain.Client
	Schedule       *PrizeSchedule
	WalletAddress  string
	MaxAttempts    int
	ConfirmTimeout time.Duration
	BackoffBase    time.Duration
	Clock          clockwork.Clock
}

// Service runs game settlement.
type Service struct {
	games          GameRepository
	progress       ProgressRepository
	chain          chain.Client
	schedule       *PrizeSchedule
	wallet         string
	maxAttempts    int
	confirmTimeout time.Duration
	backoffBase    time.Duration
	clock          clockwork.Clock
}

// NewService creates a settlement service.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.GameRepo == nil {
		return nil, errors.New("game repository cannot be nil")
	}
	if cfg.ProgressRepo == nil {
		return nil, errors.New("progress repository cannot be nil")
	}
	if cfg.Chain == nil {
		return nil, errors.New("chain client cannot be nil")
	}
	if cfg.WalletAddress == "" {
		return nil, errors.New("payout wallet address cannot be empty")
	}
	schedule := cfg.Schedule
	if schedule == nil {
		schedule = DefaultPrizeSchedule()
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		games:          cfg.GameRepo,
		progress:       cfg.ProgressRepo,
		chain:          cfg.Chain,
		schedule:       schedule,
		wallet:         cfg.WalletAddress,
		maxAttempts:    maxAttempts,
		confirmTimeout: confirmTimeout,
		backoffBase:    backoffBase,
		clock:          clock,
	}, nil
}

// payOne drives a single winner's payout through the attempt loop. It never
// returns an error: every failure mode collapses into the result so one bad
// payout cannot abort the rest of the run.
func (s *Service) payOne(ctx context.Context, job *models.PayoutJob) models.PayoutResult {
	result := models.PayoutResult{
		GamePlayerID: job.GamePlayerID,
		PlayerID:     job.PlayerID,
		Amount:       job.Amount,
	}
	ref := chain.TransferRef(job.GamePlayerID)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result.Attempts = attempt
		txRef, err := s.attemptTransfer(ctx, job, ref, attempt)
		if err == nil {
			result.TxRef = txRef
			break
		}
		if !chain.IsRetryable(err) || attempt == s.maxAttempts {
			result.Outcome = models.PayoutFailed
			result.FailureReason = err.Error()
			log.Error().Err(err).
				Str("game_player_id", job.GamePlayerID.String()).
				Int("attempts", attempt).
				Msg("payout failed")
			return result
		}

		wait := s.backoffBase << (attempt - 1)
		log.Warn().Err(err).
			Str("game_player_id", job.GamePlayerID.String()).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("payout attempt failed, retrying")
		select {
		case <-s.clock.After(wait):
		case <-ctx.Done():
			result.Outcome = models.PayoutFailed
			result.FailureReason = ctx.Err().Error()
			return result
		}
	}

	claimed, err := s.progress.MarkClaimed(ctx, job.GamePlayerID, result.TxRef, s.clock.Now().UTC())
	if err != nil {
		// The transfer is confirmed on chain. The deterministic reference
		// makes the next run's re-send a no-op, so this is safe to retry.
		result.Outcome = models.PayoutFailed
		result.FailureReason = fmt.Sprintf("record claim: %v", err)
		log.Error().Err(err).
			Str("game_player_id", job.GamePlayerID.String()).
			Str("tx_ref", result.TxRef).
			Msg("transfer confirmed but claim not recorded")
		return result
	}
	result.Outcome = models.PayoutSucceeded
	result.AlreadyClaimed = !claimed
	log.Info().
		Str("game_player_id", job.GamePlayerID.String()).
		Str("tx_ref", result.TxRef).
		Str("amount_minor_units", job.Amount.String()).
		Int("attempts", result.Attempts).
		Msg("payout succeeded")
	return result
}

// attemptTransfer submits one transfer and waits for confirmation, writing
// an audit row whatever the outcome.
func (s *Service) attemptTransfer(ctx context.Context, job *models.PayoutJob, ref string, attempt int) (string, error) {
	txRef, err := s.chain.Transfer(ctx, job.WalletAddress, job.Amount, ref)
	if err == nil {
		var status chain.Status
		status, err = s.chain.WaitForConfirmation(ctx, txRef, s.confirmTimeout)
		if err == nil {
			// Only a confirmed transfer may be recorded as claimed. A pending
			// status retries with the same reference, which is a no-op on
			// chain if the original eventually lands.
			switch status {
			case chain.StatusConfirmed:
			case chain.StatusReverted:
				err = chain.ErrTransactionReverted
			default:
				err = chain.ErrConfirmationTimeout
			}
		}
	}
	s.audit(ctx, job, attempt, txRef, err)
	return txRef, err
}

func (s *Service) audit(ctx context.Context, job *models.PayoutJob, attempt int, txRef string, attemptErr error) {
	entry := &models.AuditEntry{
		ID:           uuid.New(),
		GamePlayerID: job.GamePlayerID,
		Attempt:      attempt,
		Amount:       job.Amount,
		Recipient:    job.WalletAddress,
		TxRef:        txRef,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if attemptErr != nil {
		entry.Error = attemptErr.Error()
	}
	if err := s.progress.InsertAuditEntry(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("game_player_id", job.GamePlayerID.String()).
			Msg("failed to write settlement audit entry")
	}
}
