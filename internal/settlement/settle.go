package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/chukwukap/waffles/internal/chain"
	"github.com/chukwukap/waffles/internal/models"
)

// SettleGame pays out one ended game. Standings come back from the repository
// already in final order; ranks and prizes are persisted before any transfer
// so a crash mid-run loses no leaderboard state. Payouts run strictly one at
// a time against the shared payout wallet.
//
// The run is safe to repeat: claimed winners are reported and skipped, and
// the deterministic transfer reference makes a re-send of an unrecorded
// transfer a chain-side no-op.
func (s *Service) SettleGame(ctx context.Context, gameID uuid.UUID) (*models.SettlementReport, error) {
	cfg, err := s.games.GetGameConfig(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	if cfg.Status != models.GameStatusEnded && cfg.Status != models.GameStatusSettled {
		return nil, fmt.Errorf("game %s is %s, settlement requires an ended game", gameID, cfg.Status)
	}

	standings, err := s.progress.ListFinalStandings(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load final standings: %w", err)
	}

	report := &models.SettlementReport{
		GameID:    gameID,
		StartedAt: s.clock.Now().UTC(),
		TotalPaid: decimal.Zero,
	}

	var jobs []*models.PayoutJob
	totalDue := decimal.Zero
	for i, standing := range standings {
		rank := i + 1
		prize := s.schedule.PrizeFor(rank, cfg.PotMinorUnits)
		if err := s.progress.UpdateStanding(ctx, standing.ID, rank, prize.IntPart()); err != nil {
			return nil, fmt.Errorf("persist standing for %s: %w", standing.ID, err)
		}
		if prize.IsZero() {
			continue
		}
		if standing.ClaimedAt != nil {
			report.Results = append(report.Results, models.PayoutResult{
				GamePlayerID:   standing.ID,
				PlayerID:       standing.PlayerID,
				Outcome:        models.PayoutSucceeded,
				Amount:         prize,
				AlreadyClaimed: true,
			})
			continue
		}
		jobs = append(jobs, &models.PayoutJob{
			PlayerID:      standing.PlayerID,
			WalletAddress: standing.WalletAddress,
			Amount:        prize,
			GamePlayerID:  standing.ID,
		})
		totalDue = totalDue.Add(prize)
	}

	if len(jobs) > 0 {
		balance, err := s.chain.BalanceOf(ctx, s.wallet)
		if err != nil {
			return nil, fmt.Errorf("check payout wallet balance: %w", err)
		}
		if balance.LessThan(totalDue) {
			return nil, fmt.Errorf("payout wallet holds %s, settlement needs %s: %w",
				balance, totalDue, chain.ErrInsufficientFunds)
		}
	}

	for _, job := range jobs {
		result := s.payOne(ctx, job)
		report.Results = append(report.Results, result)
		switch {
		case result.Outcome == models.PayoutSucceeded && !result.AlreadyClaimed:
			report.TotalPaid = report.TotalPaid.Add(result.Amount)
		case result.Outcome == models.PayoutFailed:
			report.FailedCount++
		}
	}
	report.FinishedAt = s.clock.Now().UTC()

	if report.FailedCount == 0 {
		if err := s.games.MarkGameSettled(ctx, gameID); err != nil {
			return report, fmt.Errorf("mark game settled: %w", err)
		}
	}

	log.Info().
		Str("game_id", gameID.String()).
		Int("winners", len(report.Results)).
		Int("failed", report.FailedCount).
		Str("total_paid_minor_units", report.TotalPaid.String()).
		Msg("settlement run finished")
	return report, nil
}
