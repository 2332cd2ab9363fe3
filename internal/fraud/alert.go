package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"pesacore/internal/model"
)

// Alerter delivers high-risk notifications to an external collaborator.
// Delivery is best effort; a failure never blocks or undoes the flag.
type Alerter interface {
	Send(ctx context.Context, alert model.Alert) error
}

type WebhookAlerter struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewWebhookAlerter(url string, log *zap.Logger) *WebhookAlerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

// Send posts the alert JSON, retrying transient failures with
// exponential backoff. 4xx responses are treated as permanent.
func (a *WebhookAlerter) Send(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("alert marshal: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("webhook returned %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
	})
}

// NopAlerter is used when no webhook is configured.
type NopAlerter struct{}

func (NopAlerter) Send(context.Context, model.Alert) error { return nil }
