package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pesacore/internal/model"
)

// BankClient is the external bank-linkage collaborator used for wallet
// top-ups. The simulator behind it is out of scope here.
type BankClient interface {
	Transfer(ctx context.Context, toUserID uuid.UUID, amount int64) error
}

// TopUp pulls funds from the user's linked bank account and credits the
// wallet. The bank leg runs first; the wallet credit reuses the ledger's
// idempotent mutation path, so a retried top-up cannot double-credit.
func (o *Orchestrator) TopUp(ctx context.Context, bank BankClient, userID uuid.UUID, amount int64, idempotencyKey string) (*model.Wallet, error) {
	if bank == nil {
		return nil, fmt.Errorf("%w: bank client required", ErrValidation)
	}
	if err := bank.Transfer(ctx, userID, amount); err != nil {
		return nil, fmt.Errorf("bank transfer: %w", err)
	}
	return o.ledger.Credit(ctx, model.MutationRequest{
		UserID:         userID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	})
}
