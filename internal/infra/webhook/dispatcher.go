package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"consent-app/internal/domain/webhooks"
)

// Dispatcher sends webhook events and keeps the delivery log.
type Dispatcher struct {
	db     *gorm.DB
	sender *Sender
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, sender *Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{db: db, sender: sender, logger: logger.With("component", "webhooks")}
}

// Deliver sends one event to one hook and stores the attempt.
func (d *Dispatcher) Deliver(ctx context.Context, hook webhooks.Webhook, event string, data any) (*webhooks.Delivery, error) {
	delivery, err := d.sender.Send(ctx, hook, event, data)
	if err != nil {
		return nil, err
	}
	if err := webhooks.LogDelivery(ctx, d.db, &delivery); err != nil {
		return &delivery, err
	}
	if !delivery.Success {
		d.logger.Warn("webhook delivery failed",
			"webhook_id", hook.ID, "event", event, "status", delivery.StatusCode, "error", delivery.Error)
	}
	return &delivery, nil
}

// Publish fans event out to every subscribed hook of the user in the
// background. Wait blocks until those deliveries finish.
func (d *Dispatcher) Publish(userID uint, websiteID, event string, data any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		hooks, err := webhooks.Subscribers(ctx, d.db, userID, websiteID, event)
		if err != nil {
			d.logger.Error("load webhook subscribers", "user_id", userID, "event", event, "error", err)
			return
		}
		for _, h := range hooks {
			if _, err := d.Deliver(ctx, h, event, data); err != nil {
				d.logger.Error("webhook delivery", "webhook_id", h.ID, "event", event, "error", err)
			}
		}
	}()
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
