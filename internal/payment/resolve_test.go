package payment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseQRToken(t *testing.T) {
	id := uuid.New()

	got, err := parseQRToken("payment://user/" + id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != id {
		t.Fatalf("got %s, want %s", got, id)
	}
}

func TestParseQRTokenInvalid(t *testing.T) {
	cases := []string{
		"payment://user/",
		"payment://user/not-a-uuid",
		"payment://merchant/" + uuid.NewString(),
		"payment://",
	}
	for _, token := range cases {
		if _, err := parseQRToken(token); !errors.Is(err, ErrInvalidRecipientToken) {
			t.Errorf("parseQRToken(%q) = %v, want ErrInvalidRecipientToken", token, err)
		}
	}
}
