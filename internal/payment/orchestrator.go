package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pesacore/internal/ledger"
	"pesacore/internal/metrics"
	"pesacore/internal/model"
)

// FraudTopic is where committed payments are announced for risk scoring.
const FraudTopic = "fraud.payment.created"

// Publisher is the outbound message bus. Publishing happens strictly after
// commit and is at-most-once: a failed publish is logged, never surfaced.
type Publisher interface {
	Publish(topic string, data []byte) error
}

// Orchestrator moves money between two wallets as one atomic transaction:
// debit, credit, journal entry and daily-limit update commit or abort
// together, so no compensating actions exist anywhere in this package.
type Orchestrator struct {
	pool      *pgxpool.Pool
	ledger    *ledger.Ledger
	directory Directory
	bus       Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(pool *pgxpool.Pool, l *ledger.Ledger, dir Directory, bus Publisher, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		pool:      pool,
		ledger:    l,
		directory: dir,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

func (o *Orchestrator) Pay(ctx context.Context, req model.PayRequest) (*model.PaymentResponse, error) {
	start := time.Now()
	resp, err := o.pay(ctx, req)
	metrics.PaymentDuration.Observe(time.Since(start).Seconds())
	metrics.PaymentsTotal.WithLabelValues(paymentStatus(err)).Inc()
	return resp, err
}

func (o *Orchestrator) pay(ctx context.Context, req model.PayRequest) (*model.PaymentResponse, error) {
	if err := validatePay(req); err != nil {
		return nil, err
	}

	used, err := o.journalKeyUsed(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrDuplicateIdempotencyKey
	}

	toUserID, err := o.resolveRecipient(ctx, req.RecipientToken)
	if err != nil {
		return nil, err
	}
	if toUserID == req.FromUserID {
		return nil, ErrSelfPayment
	}

	if err := o.checkDailyLimit(ctx, req.FromUserID, req.Amount); err != nil {
		return nil, err
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Both wallet rows are locked up front in a fixed total order (by
	// user id), so two opposite-direction payments between the same pair
	// can never deadlock each other.
	if err := o.lockWallets(ctx, tx, req.FromUserID, toUserID); err != nil {
		return nil, err
	}

	if _, err := o.ledger.DebitInTx(ctx, tx, model.MutationRequest{
		UserID:         req.FromUserID,
		Amount:         req.Amount,
		IdempotencyKey: "debit_" + req.IdempotencyKey,
	}); err != nil {
		return nil, mapStoreErr(err)
	}

	if _, err := o.ledger.CreditInTx(ctx, tx, model.MutationRequest{
		UserID:         toUserID,
		Amount:         req.Amount,
		IdempotencyKey: "credit_" + req.IdempotencyKey,
	}); err != nil {
		return nil, mapStoreErr(err)
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO transaction_journal (tx_id, from_user_id, to_user_id, amount, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, txID, req.FromUserID, toUserID, req.Amount, model.StatusSuccess, req.IdempotencyKey); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, fmt.Errorf("journal insert: %w", err)
	}

	if err := o.bumpDailyLimit(ctx, tx, req.FromUserID, req.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapStoreErr(fmt.Errorf("commit: %w", err))
	}

	o.ledger.InvalidateBalance(req.FromUserID)
	o.ledger.InvalidateBalance(toUserID)

	o.publishFraudEvent(model.FraudEvent{
		TxID:              txID,
		FromUserID:        req.FromUserID,
		ToUserID:          toUserID,
		Amount:            req.Amount,
		DeviceFingerprint: req.DeviceFingerprint,
		IPAddress:         req.IPAddress,
		Timestamp:         o.now().UTC(),
	})

	o.log.Info("payment completed",
		zap.String("tx_id", txID.String()),
		zap.String("from", req.FromUserID.String()),
		zap.String("to", toUserID.String()),
		zap.Int64("amount", req.Amount),
	)

	return &model.PaymentResponse{
		TxID:       txID,
		FromUserID: req.FromUserID,
		ToUserID:   toUserID,
		Amount:     req.Amount,
		Status:     model.StatusSuccess,
		Timestamp:  o.now().UTC(),
	}, nil
}

func (o *Orchestrator) lockWallets(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) error {
	first, second := lockOrder(a, b)
	for _, id := range []uuid.UUID{first, second} {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ledger.ErrWalletNotFound
			}
			return fmt.Errorf("lock wallet %s: %w", id, err)
		}
	}
	return nil
}

// lockOrder returns the pair in ascending byte order of the ids.
func lockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func (o *Orchestrator) journalKeyUsed(ctx context.Context, key string) (bool, error) {
	var used bool
	err := o.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM transaction_journal WHERE idempotency_key = $1)
	`, key).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("journal idempotency check: %w", err)
	}
	return used, nil
}

func (o *Orchestrator) publishFraudEvent(event model.FraudEvent) {
	if o.bus == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		o.log.Error("fraud event marshal failed", zap.String("tx_id", event.TxID.String()), zap.Error(err))
		return
	}
	if err := o.bus.Publish(FraudTopic, data); err != nil {
		o.log.Error("fraud event publish failed", zap.String("tx_id", event.TxID.String()), zap.Error(err))
	}
}

func validatePay(req model.PayRequest) error {
	if req.FromUserID == uuid.Nil {
		return fmt.Errorf("%w: from_user_id required", ErrValidation)
	}
	if req.RecipientToken == "" {
		return fmt.Errorf("%w: recipient_token required", ErrValidation)
	}
	if req.Amount < 1 || req.Amount > model.MaxPerTx {
		return fmt.Errorf("%w: amount must be in [1, %d]", ErrValidation, model.MaxPerTx)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency_key required", ErrValidation)
	}
	return nil
}

// mapStoreErr turns storage-level aborts (deadlock detection,
// serialization failures) into the retryable conflict error instead of
// leaking driver errors to the caller.
func mapStoreErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001") {
		return fmt.Errorf("%w: %s", ledger.ErrConcurrencyConflict, pgErr.Code)
	}
	return err
}

func paymentStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit_exceeded"
	case errors.Is(err, ErrDuplicateIdempotencyKey), errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		return "duplicate_key"
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return "concurrency_conflict"
	default:
		return "error"
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
