package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"consent-app/internal/domain/webhooks"
)

type Payload struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// Sender performs a single signed POST per delivery. It never retries.
type Sender struct {
	client *http.Client
	now    func() time.Time
}

func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Send posts event to the hook and describes the attempt as a Delivery.
// Transport failures and non-2xx answers are reported in the Delivery, not
// as an error; the error is only for payloads that cannot be encoded.
func (s *Sender) Send(ctx context.Context, hook webhooks.Webhook, event string, data any) (webhooks.Delivery, error) {
	p := Payload{
		ID:        uuid.NewString(),
		Event:     event,
		CreatedAt: s.now().UTC(),
		Data:      data,
	}
	d := webhooks.Delivery{ID: p.ID, WebhookID: hook.ID, Event: event}

	body, err := json.Marshal(p)
	if err != nil {
		return d, fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.Error = err.Error()
		return d, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "consent-app-webhooks/1")
	req.Header.Set(HeaderSignature, Sign(hook.Secret, body))
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderDelivery, p.ID)

	start := s.now()
	resp, err := s.client.Do(req)
	d.DurationMS = s.now().Sub(start).Milliseconds()
	if err != nil {
		d.Error = err.Error()
		return d, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	d.StatusCode = resp.StatusCode
	d.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !d.Success {
		d.Error = fmt.Sprintf("endpoint answered %d", resp.StatusCode)
	}
	return d, nil
}
