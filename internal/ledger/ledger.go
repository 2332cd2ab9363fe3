package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pesacore/internal/metrics"
	"pesacore/internal/model"
)

const uniqueViolation = "23505"

// Ledger owns the wallets, idempotency_keys tables and nothing else.
// Every mutation holds the wallet row lock for the duration of the
// read-modify-write and additionally guards the update with a version
// compare-and-swap, so the write stays safe even if the lock discipline
// is bypassed elsewhere.
type Ledger struct {
	pool  *pgxpool.Pool
	cache *redis.Client
	log   *zap.Logger
}

func New(pool *pgxpool.Pool, cache *redis.Client, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{pool: pool, cache: cache, log: log}
}

// CreateWallet creates a zero-balance wallet for the user, or returns the
// existing one. ON CONFLICT DO NOTHING returns no row when the wallet
// already exists, so the conflict path falls through to a plain fetch.
func (l *Ledger) CreateWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	err := l.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, version)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id, balance, version, created_at, updated_at
	`, userID).Scan(&w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err == nil {
		l.log.Info("wallet created", zap.String("user_id", userID.String()))
		return &w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return l.getWallet(ctx, userID)
}

func (l *Ledger) getWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	var w model.Wallet
	err := l.pool.QueryRow(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) Credit(ctx context.Context, req model.MutationRequest) (*model.Wallet, error) {
	return l.mutate(ctx, req, true)
}

func (l *Ledger) Debit(ctx context.Context, req model.MutationRequest) (*model.Wallet, error) {
	return l.mutate(ctx, req, false)
}

func (l *Ledger) mutate(ctx context.Context, req model.MutationRequest, isCredit bool) (*model.Wallet, error) {
	op := "debit"
	if isCredit {
		op = "credit"
	}
	start := time.Now()

	w, err := l.runMutation(ctx, req, isCredit)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientBalance):
		status = "insufficient_balance"
	case errors.Is(err, ErrConcurrencyConflict):
		status = "concurrency_conflict"
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		status = "duplicate_key"
	default:
		status = "error"
	}
	metrics.WalletMutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.WalletMutationsTotal.WithLabelValues(op, status).Inc()

	return w, err
}

func (l *Ledger) runMutation(ctx context.Context, req model.MutationRequest, isCredit bool) (*model.Wallet, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	used, err := l.keyUsed(ctx, req.IdempotencyKey, req.UserID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrDuplicateIdempotencyKey
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	w, err := l.applyInTx(ctx, tx, req, isCredit)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	l.invalidateBalance(req.UserID)

	l.log.Info("wallet updated",
		zap.String("user_id", req.UserID.String()),
		zap.Int64("amount", req.Amount),
		zap.Bool("credit", isCredit),
		zap.Int64("version", w.Version),
	)
	return w, nil
}

// CreditInTx applies a credit inside a caller-owned transaction. The payment
// orchestrator uses this to keep both legs, the journal write and the limit
// update under one commit.
func (l *Ledger) CreditInTx(ctx context.Context, tx pgx.Tx, req model.MutationRequest) (*model.Wallet, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return l.applyInTx(ctx, tx, req, true)
}

// DebitInTx is the debit counterpart of CreditInTx.
func (l *Ledger) DebitInTx(ctx context.Context, tx pgx.Tx, req model.MutationRequest) (*model.Wallet, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return l.applyInTx(ctx, tx, req, false)
}

func (l *Ledger) applyInTx(ctx context.Context, tx pgx.Tx, req model.MutationRequest, isCredit bool) (*model.Wallet, error) {
	var w model.Wallet
	err := tx.QueryRow(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, req.UserID).Scan(&w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	if !isCredit && w.Balance < req.Amount {
		return nil, ErrInsufficientBalance
	}

	newBalance := w.Balance + req.Amount
	if !isCredit {
		newBalance = w.Balance - req.Amount
	}

	tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND version = $3
	`, newBalance, req.UserID, w.Version)
	if err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConcurrencyConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, user_id)
		VALUES ($1, $2)
	`, req.IdempotencyKey, req.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, fmt.Errorf("record idempotency key: %w", err)
	}

	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return &w, nil
}

func (l *Ledger) keyUsed(ctx context.Context, key string, userID uuid.UUID) (bool, error) {
	var used bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM idempotency_keys WHERE idempotency_key = $1 AND user_id = $2)
	`, key, userID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("idempotency check: %w", err)
	}
	return used, nil
}

func validate(req model.MutationRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id required", ErrValidation)
	}
	if req.Amount < 1 || req.Amount > model.MaxPerTx {
		return fmt.Errorf("%w: amount must be in [1, %d]", ErrValidation, model.MaxPerTx)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency_key required", ErrValidation)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
