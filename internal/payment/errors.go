package payment

import "errors"

var (
	ErrValidation              = errors.New("invalid request")
	ErrUserNotFound            = errors.New("recipient not found")
	ErrInvalidRecipientToken   = errors.New("invalid recipient token")
	ErrSelfPayment             = errors.New("cannot pay self")
	ErrDailyLimitExceeded      = errors.New("daily limit exceeded")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)
