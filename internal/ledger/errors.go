package ledger

import "errors"

var (
	ErrValidation              = errors.New("invalid request")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	// ErrConcurrencyConflict means the optimistic version check lost.
	// The mutation was not applied; the caller decides whether to retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
