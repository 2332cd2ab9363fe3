package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pesacore/internal/model"
)

// Daily caps in minor currency units per KYC tier.
const (
	basicDailyCap int64 = 1_000_000
	fullDailyCap  int64 = 10_000_000
)

func capForTier(tier string) int64 {
	if tier == model.TierFull {
		return fullDailyCap
	}
	return basicDailyCap
}

func exceedsDailyCap(used, amount, cap int64) bool {
	return used+amount > cap
}

// checkDailyLimit rejects the payment when today's cumulative spend plus
// the requested amount would exceed the sender's tier cap. The counter is
// lazily reset the first time it is touched after the reset date rolls
// over. Runs before any balance mutation.
func (o *Orchestrator) checkDailyLimit(ctx context.Context, userID uuid.UUID, amount int64) error {
	today := o.now().UTC().Truncate(24 * time.Hour)

	var used int64
	var resetDate time.Time
	tier := model.TierBasic
	err := o.pool.QueryRow(ctx, `
		SELECT amount_used, reset_date, kyc_tier
		FROM daily_limits
		WHERE user_id = $1
	`, userID).Scan(&used, &resetDate, &tier)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		used = 0
	case err != nil:
		return fmt.Errorf("daily limit read: %w", err)
	case resetDate.Before(today):
		if _, err := o.pool.Exec(ctx, `
			UPDATE daily_limits SET amount_used = 0, reset_date = $1 WHERE user_id = $2
		`, today, userID); err != nil {
			return fmt.Errorf("daily limit reset: %w", err)
		}
		used = 0
	}

	if exceedsDailyCap(used, amount, capForTier(tier)) {
		return ErrDailyLimitExceeded
	}
	return nil
}

// bumpDailyLimit records the spend inside the payment transaction.
func (o *Orchestrator) bumpDailyLimit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	today := o.now().UTC().Truncate(24 * time.Hour)
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_limits (user_id, amount_used, reset_date, kyc_tier)
		VALUES ($1, $2, $3, 'basic')
		ON CONFLICT (user_id) DO UPDATE
		SET amount_used = daily_limits.amount_used + EXCLUDED.amount_used
	`, userID, amount, today)
	if err != nil {
		return fmt.Errorf("daily limit update: %w", err)
	}
	return nil
}
