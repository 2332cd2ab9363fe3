package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Directory resolves a phone-derived identifier to a user id. Callers
// supply a one-way hash of the phone number; raw numbers never reach
// this core. Identity ownership lives outside the module.
type Directory interface {
	ResolvePhoneHash(ctx context.Context, phoneHash string) (uuid.UUID, error)
}

const qrTokenPrefix = "payment://user/"

// resolveRecipient maps a recipient token to a user id. QR tokens embed
// the recipient directly ("payment://user/<uuid>") and are decoded
// locally; anything else is treated as a phone hash and handed to the
// directory.
func (o *Orchestrator) resolveRecipient(ctx context.Context, token string) (uuid.UUID, error) {
	if strings.HasPrefix(token, "payment://") {
		return parseQRToken(token)
	}
	return o.directory.ResolvePhoneHash(ctx, token)
}

func parseQRToken(token string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(token, qrTokenPrefix)
	if !ok || raw == "" {
		return uuid.Nil, ErrInvalidRecipientToken
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidRecipientToken, token)
	}
	return id, nil
}
