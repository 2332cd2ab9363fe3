package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const balanceTTL = 5 * time.Minute

func balanceKey(userID uuid.UUID) string {
	return fmt.Sprintf("wallet:balance:%s", userID)
}

// CachedBalance reads the balance through Redis with a short TTL. Mutations
// invalidate the key, so a stale read lives at most until the next write or
// TTL expiry. Falls back to the database when no cache is configured.
func (l *Ledger) CachedBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if l.cache == nil {
		return l.GetBalance(ctx, userID)
	}

	key := balanceKey(userID)
	cached, err := l.cache.Get(ctx, key).Int64()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		l.log.Warn("balance cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
	}

	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := l.cache.Set(ctx, key, balance, balanceTTL).Err(); err != nil {
		l.log.Warn("balance cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return balance, nil
}

// invalidateBalance drops the cached balance after a committed mutation.
// Best effort: a failed delete only extends staleness until the TTL.
func (l *Ledger) invalidateBalance(userID uuid.UUID) {
	if l.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.cache.Del(ctx, balanceKey(userID)).Err(); err != nil {
		l.log.Warn("balance cache invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// InvalidateBalance is the exported hook for callers that mutate wallets
// through their own transactions (the payment orchestrator).
func (l *Ledger) InvalidateBalance(userID uuid.UUID) {
	l.invalidateBalance(userID)
}
