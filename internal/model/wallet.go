package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxPerTx is the largest amount (in minor currency units) a single
// credit, debit or payment may move.
const MaxPerTx int64 = 500_000

type Wallet struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MutationRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	Amount         int64     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
}
