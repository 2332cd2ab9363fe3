package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pesacore/internal/ledger"
	"pesacore/internal/model"
)

// Store is the Postgres-backed signal source and flag store. Balance
// reads go through the ledger's Redis cache; everything else queries the
// journal and the device registry directly. fraud_flags is the only
// table this component writes.
type Store struct {
	pool   *pgxpool.Pool
	ledger *ledger.Ledger
}

func NewStore(pool *pgxpool.Pool, l *ledger.Ledger) *Store {
	return &Store{pool: pool, ledger: l}
}

func (s *Store) SenderBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.ledger.CachedBalance(ctx, userID)
}

func (s *Store) KnownDevice(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, error) {
	var known bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_devices WHERE user_id = $1 AND device_fingerprint = $2)
	`, userID, fingerprint).Scan(&known)
	if err != nil {
		return false, fmt.Errorf("device lookup: %w", err)
	}
	return known, nil
}

func (s *Store) PaymentsToReceiver(ctx context.Context, from, to uuid.UUID, window time.Duration) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transaction_journal
		WHERE from_user_id = $1 AND to_user_id = $2 AND created_at > $3
	`, from, to, time.Now().UTC().Add(-window)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("receiver count: %w", err)
	}
	return n, nil
}

func (s *Store) SecondsSinceLastPayment(ctx context.Context, userID uuid.UUID) (float64, error) {
	var seconds float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(EXTRACT(EPOCH FROM (NOW() - MAX(created_at))), 0)
		FROM transaction_journal
		WHERE from_user_id = $1
	`, userID).Scan(&seconds)
	if err != nil {
		return 0, fmt.Errorf("last payment age: %w", err)
	}
	return seconds, nil
}

func (s *Store) PaymentCount(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transaction_journal
		WHERE from_user_id = $1 AND created_at > $2
	`, userID, time.Now().UTC().Add(-window)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("payment count: %w", err)
	}
	return n, nil
}

func (s *Store) AvgAmount(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error) {
	var avg int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(amount), 0)::bigint FROM transaction_journal
		WHERE from_user_id = $1 AND created_at > $2
	`, userID, time.Now().UTC().Add(-window)).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average amount: %w", err)
	}
	return avg, nil
}

// UpsertFlag persists a flag once per tx id. A replayed event hits the
// conflict clause and is a no-op, which keeps duplicate bus deliveries
// harmless.
func (s *Store) UpsertFlag(ctx context.Context, flag model.FraudFlag) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fraud_flags (tx_id, risk_score, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (tx_id) DO NOTHING
	`, flag.TxID, flag.RiskScore, flag.Reason)
	if err != nil {
		return fmt.Errorf("flag upsert: %w", err)
	}
	return nil
}
