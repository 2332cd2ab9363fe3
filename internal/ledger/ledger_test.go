package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"pesacore/internal/model"
)

func TestValidateMutation(t *testing.T) {
	valid := model.MutationRequest{
		UserID:         uuid.New(),
		Amount:         1,
		IdempotencyKey: uuid.NewString(),
	}
	if err := validate(valid); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	max := valid
	max.Amount = model.MaxPerTx
	if err := validate(max); err != nil {
		t.Fatalf("max amount rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.MutationRequest)
	}{
		{"nil user", func(r *model.MutationRequest) { r.UserID = uuid.Nil }},
		{"zero amount", func(r *model.MutationRequest) { r.Amount = 0 }},
		{"negative amount", func(r *model.MutationRequest) { r.Amount = -1 }},
		{"over max", func(r *model.MutationRequest) { r.Amount = model.MaxPerTx + 1 }},
		{"empty key", func(r *model.MutationRequest) { r.IdempotencyKey = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := valid
			c.mutate(&req)
			if err := validate(req); !errors.Is(err, ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}
