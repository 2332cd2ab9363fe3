package model

import (
	"time"

	"github.com/google/uuid"
)

// FraudEvent is the payload published on "fraud.payment.created" after a
// payment commits. Delivery is at-most-once; consumers must tolerate both
// loss and duplication.
type FraudEvent struct {
	TxID              uuid.UUID `json:"tx_id"`
	FromUserID        uuid.UUID `json:"from_user_id"`
	ToUserID          uuid.UUID `json:"to_user_id"`
	Amount            int64     `json:"amount"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

type FraudFlag struct {
	TxID      uuid.UUID `json:"tx_id"`
	RiskScore int       `json:"risk_score"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
	Reviewed  bool      `json:"reviewed"`
}

// Alert is the webhook payload delivered for flagged transactions.
type Alert struct {
	TxID       uuid.UUID `json:"tx_id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	Amount     int64     `json:"amount"`
	RiskScore  int       `json:"risk_score"`
	Reasons    []string  `json:"reasons"`
	Timestamp  time.Time `json:"timestamp"`
}
