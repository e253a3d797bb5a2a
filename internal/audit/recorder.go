package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toss-checkout/internal/events"
	"github.com/noah-isme/toss-checkout/internal/obs"
)

// PaymentRecord is the audited view of a confirmed payment.
type PaymentRecord struct {
	OrderID    string      `json:"orderId"`
	PaymentKey string      `json:"paymentKey"`
	Amount     json.Number `json:"amount"`
	Status     string      `json:"status"`
}

// Recorder consumes event tasks in the worker and writes the audit trail.
type Recorder struct {
	Logger *zerolog.Logger
}

// Register binds the recorder to every event task type on mux.
func (r Recorder) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(events.TaskType(events.TopicPaymentConfirmed), r.HandlePaymentConfirmed)
	for _, topic := range events.DefaultTopics() {
		if topic == events.TopicPaymentConfirmed {
			continue
		}
		mux.HandleFunc(events.TaskType(topic), r.HandleEvent)
	}
}

// HandlePaymentConfirmed records one audit line and metric per confirmed payment.
// Malformed payloads are not retried.
func (r Recorder) HandlePaymentConfirmed(_ context.Context, task *asynq.Task) error {
	ev, err := events.DecodeTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	var rec PaymentRecord
	if err := json.Unmarshal(ev.Payload, &rec); err != nil {
		return fmt.Errorf("%w: decode payment: %v", asynq.SkipRetry, err)
	}
	if rec.OrderID == "" {
		rec.OrderID = ev.AggregateID
	}

	if r.Logger != nil {
		r.Logger.Info().
			Str("event_id", ev.ID).
			Str("order_id", rec.OrderID).
			Str("payment_key", rec.PaymentKey).
			Str("amount", rec.Amount.String()).
			Str("status", rec.Status).
			Time("occurred_at", ev.OccurredAt).
			Msg("payment confirmed")
	}
	if obs.PaymentAuditTotal != nil {
		obs.PaymentAuditTotal.Inc()
	}
	return nil
}

// HandleEvent logs the remaining domain events.
func (r Recorder) HandleEvent(_ context.Context, task *asynq.Task) error {
	ev, err := events.DecodeTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if r.Logger != nil {
		r.Logger.Info().
			Str("event_id", ev.ID).
			Str("topic", ev.Topic).
			Str("aggregate_id", ev.AggregateID).
			Msg("event processed")
	}
	return nil
}
