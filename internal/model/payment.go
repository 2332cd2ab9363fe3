package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "SUCCESS"

	TierBasic = "basic"
	TierFull  = "full"
)

type PayRequest struct {
	FromUserID        uuid.UUID `json:"from_user_id"`
	RecipientToken    string    `json:"recipient_token"`
	Amount            int64     `json:"amount"`
	IdempotencyKey    string    `json:"idempotency_key"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
}

type PaymentResponse struct {
	TxID       uuid.UUID `json:"tx_id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// JournalEntry is one committed money movement. Rows are append-only:
// the journal is the source of truth for conservation checks.
type JournalEntry struct {
	TxID           uuid.UUID `json:"tx_id"`
	FromUserID     uuid.UUID `json:"from_user_id"`
	ToUserID       uuid.UUID `json:"to_user_id"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

type DailyLimit struct {
	UserID     uuid.UUID `json:"user_id"`
	AmountUsed int64     `json:"amount_used"`
	ResetDate  time.Time `json:"reset_date"`
	KycTier    string    `json:"kyc_tier"`
}
