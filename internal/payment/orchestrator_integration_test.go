package payment

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pesacore/internal/ledger"
	"pesacore/internal/migrate"
	"pesacore/internal/model"
)

type staticDirectory map[string]uuid.UUID

func (d staticDirectory) ResolvePhoneHash(_ context.Context, phoneHash string) (uuid.UUID, error) {
	if id, ok := d[phoneHash]; ok {
		return id, nil
	}
	return uuid.Nil, ErrUserNotFound
}

type captureBus struct {
	topics   []string
	payloads [][]byte
}

func (b *captureBus) Publish(topic string, data []byte) error {
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, data)
	return nil
}

type payEnv struct {
	pool   *pgxpool.Pool
	ledger *ledger.Ledger
	orch   *Orchestrator
	dir    staticDirectory
	bus    *captureBus
}

func setupPay(t *testing.T) *payEnv {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := migrate.Run(ctx, dbURL, "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE wallets, idempotency_keys, transaction_journal, daily_limits, fraud_flags, user_devices`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	led := ledger.New(pool, nil, nil)
	dir := staticDirectory{}
	bus := &captureBus{}
	return &payEnv{
		pool:   pool,
		ledger: led,
		orch:   NewOrchestrator(pool, led, dir, bus, nil),
		dir:    dir,
		bus:    bus,
	}
}

func (e *payEnv) fundedWallet(t *testing.T, balance int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	if _, err := e.ledger.CreateWallet(ctx, userID); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if balance > 0 {
		if _, err := e.ledger.Credit(ctx, model.MutationRequest{UserID: userID, Amount: balance, IdempotencyKey: uuid.NewString()}); err != nil {
			t.Fatalf("fund wallet: %v", err)
		}
	}
	return userID
}

func (e *payEnv) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	b, err := e.ledger.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestPayConservation(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	sender := e.fundedWallet(t, 500_000)
	receiver := e.fundedWallet(t, 0)
	e.dir["hash-receiver"] = receiver

	resp, err := e.orch.Pay(ctx, model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-receiver",
		Amount:         10_000,
		IdempotencyKey: "p1",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.Status != model.StatusSuccess {
		t.Fatalf("status = %s", resp.Status)
	}

	if got := e.balance(t, sender); got != 490_000 {
		t.Errorf("sender balance = %d, want 490000", got)
	}
	if got := e.balance(t, receiver); got != 10_000 {
		t.Errorf("receiver balance = %d, want 10000", got)
	}

	var journalCount, amountUsed int64
	if err := e.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_journal WHERE tx_id = $1`, resp.TxID).Scan(&journalCount); err != nil {
		t.Fatalf("journal: %v", err)
	}
	if journalCount != 1 {
		t.Errorf("journal rows = %d, want 1", journalCount)
	}
	if err := e.pool.QueryRow(ctx, `SELECT amount_used FROM daily_limits WHERE user_id = $1`, sender).Scan(&amountUsed); err != nil {
		t.Fatalf("daily limit: %v", err)
	}
	if amountUsed != 10_000 {
		t.Errorf("amount_used = %d, want 10000", amountUsed)
	}

	if len(e.bus.topics) != 1 || e.bus.topics[0] != FraudTopic {
		t.Fatalf("published topics = %v", e.bus.topics)
	}
	var event model.FraudEvent
	if err := json.Unmarshal(e.bus.payloads[0], &event); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if event.TxID != resp.TxID || event.FromUserID != sender || event.ToUserID != receiver || event.Amount != 10_000 {
		t.Errorf("event = %+v", event)
	}
}

func TestPayDuplicateIdempotencyKey(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	sender := e.fundedWallet(t, 100_000)
	receiver := e.fundedWallet(t, 0)
	e.dir["hash-r"] = receiver

	req := model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-r",
		Amount:         5000,
		IdempotencyKey: "dup-key",
	}
	if _, err := e.orch.Pay(ctx, req); err != nil {
		t.Fatalf("first pay: %v", err)
	}
	if _, err := e.orch.Pay(ctx, req); !errors.Is(err, ErrDuplicateIdempotencyKey) {
		t.Fatalf("replay: got %v, want ErrDuplicateIdempotencyKey", err)
	}

	if got := e.balance(t, sender); got != 95_000 {
		t.Errorf("sender balance = %d, want 95000 (single debit)", got)
	}
}

func TestPayInsufficientBalance(t *testing.T) {
	e := setupPay(t)

	sender := e.fundedWallet(t, 1000)
	receiver := e.fundedWallet(t, 0)
	e.dir["hash-r"] = receiver

	_, err := e.orch.Pay(context.Background(), model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-r",
		Amount:         5000,
		IdempotencyKey: uuid.NewString(),
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	if got := e.balance(t, sender); got != 1000 {
		t.Errorf("sender balance = %d, want 1000 (rolled back)", got)
	}
	if got := e.balance(t, receiver); got != 0 {
		t.Errorf("receiver balance = %d, want 0 (rolled back)", got)
	}
	if len(e.bus.topics) != 0 {
		t.Errorf("no event should be published for a failed payment, got %v", e.bus.topics)
	}
}

func TestPayDailyLimitExceeded(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	sender := e.fundedWallet(t, 10_000_000)
	receiver := e.fundedWallet(t, 0)
	e.dir["hash-r"] = receiver

	if _, err := e.pool.Exec(ctx, `
		INSERT INTO daily_limits (user_id, amount_used, reset_date, kyc_tier)
		VALUES ($1, 800000, CURRENT_DATE, 'basic')
	`, sender); err != nil {
		t.Fatalf("seed limit: %v", err)
	}

	_, err := e.orch.Pay(ctx, model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-r",
		Amount:         300_000,
		IdempotencyKey: uuid.NewString(),
	})
	if !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("got %v, want ErrDailyLimitExceeded", err)
	}

	var amountUsed int64
	if err := e.pool.QueryRow(ctx, `SELECT amount_used FROM daily_limits WHERE user_id = $1`, sender).Scan(&amountUsed); err != nil {
		t.Fatalf("daily limit: %v", err)
	}
	if amountUsed != 800_000 {
		t.Errorf("amount_used = %d, want 800000 (unchanged)", amountUsed)
	}
	if got := e.balance(t, sender); got != 10_000_000 {
		t.Errorf("sender balance = %d, want 10000000 (no mutation)", got)
	}
}

func TestPayDailyLimitRollsOver(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	sender := e.fundedWallet(t, 10_000_000)
	receiver := e.fundedWallet(t, 0)
	e.dir["hash-r"] = receiver

	// Yesterday's counter is nearly full; a new day resets it first.
	if _, err := e.pool.Exec(ctx, `
		INSERT INTO daily_limits (user_id, amount_used, reset_date, kyc_tier)
		VALUES ($1, 900000, CURRENT_DATE - 1, 'basic')
	`, sender); err != nil {
		t.Fatalf("seed limit: %v", err)
	}

	if _, err := e.orch.Pay(ctx, model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-r",
		Amount:         300_000,
		IdempotencyKey: uuid.NewString(),
	}); err != nil {
		t.Fatalf("pay after rollover: %v", err)
	}

	var amountUsed int64
	if err := e.pool.QueryRow(ctx, `SELECT amount_used FROM daily_limits WHERE user_id = $1`, sender).Scan(&amountUsed); err != nil {
		t.Fatalf("daily limit: %v", err)
	}
	if amountUsed != 300_000 {
		t.Errorf("amount_used = %d, want 300000 after reset", amountUsed)
	}
}

func TestPaySelfRejected(t *testing.T) {
	e := setupPay(t)

	sender := e.fundedWallet(t, 100_000)

	_, err := e.orch.Pay(context.Background(), model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "payment://user/" + sender.String(),
		Amount:         1000,
		IdempotencyKey: uuid.NewString(),
	})
	if !errors.Is(err, ErrSelfPayment) {
		t.Fatalf("got %v, want ErrSelfPayment", err)
	}
}

func TestPayUnknownRecipient(t *testing.T) {
	e := setupPay(t)

	sender := e.fundedWallet(t, 100_000)

	_, err := e.orch.Pay(context.Background(), model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "hash-nobody",
		Amount:         1000,
		IdempotencyKey: uuid.NewString(),
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

type okBank struct{}

func (okBank) Transfer(context.Context, uuid.UUID, int64) error { return nil }

func TestTopUpCreditsWallet(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	user := e.fundedWallet(t, 0)

	w, err := e.orch.TopUp(ctx, okBank{}, user, 25_000, "topup-1")
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
	if w.Balance != 25_000 {
		t.Fatalf("balance = %d, want 25000", w.Balance)
	}

	// A retried top-up reuses the ledger's idempotency guard.
	if _, err := e.orch.TopUp(ctx, okBank{}, user, 25_000, "topup-1"); !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		t.Fatalf("replay: got %v, want ErrDuplicateIdempotencyKey", err)
	}
	if got := e.balance(t, user); got != 25_000 {
		t.Errorf("balance after replay = %d, want 25000", got)
	}
}

func TestPayByQRToken(t *testing.T) {
	e := setupPay(t)
	ctx := context.Background()

	sender := e.fundedWallet(t, 100_000)
	receiver := e.fundedWallet(t, 0)

	if _, err := e.orch.Pay(ctx, model.PayRequest{
		FromUserID:     sender,
		RecipientToken: "payment://user/" + receiver.String(),
		Amount:         2500,
		IdempotencyKey: uuid.NewString(),
	}); err != nil {
		t.Fatalf("pay by qr: %v", err)
	}

	if got := e.balance(t, receiver); got != 2500 {
		t.Errorf("receiver balance = %d, want 2500", got)
	}
}
