package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toss-checkout/internal/audit"
	"github.com/noah-isme/toss-checkout/internal/events"
	"github.com/noah-isme/toss-checkout/internal/obs"
)

func eventTask(t *testing.T, topic string, payload any) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(events.Event{
		ID:          "evt-1",
		Topic:       topic,
		AggregateID: "ORDER_1700000000000",
		Payload:     raw,
		OccurredAt:  time.Unix(1_700_000_000, 0).UTC(),
	})
	require.NoError(t, err)
	return asynq.NewTask(events.TaskType(topic), body)
}

func TestHandlePaymentConfirmed(t *testing.T) {
	obs.MustRegisterDomainMetrics("checkout", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.PaymentAuditTotal)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	rec := audit.Recorder{Logger: &logger}

	task := eventTask(t, events.TopicPaymentConfirmed, map[string]any{
		"paymentKey": "pk_1",
		"amount":     50000,
		"status":     "DONE",
	})
	require.NoError(t, rec.HandlePaymentConfirmed(context.Background(), task))

	require.Equal(t, before+1, testutil.ToFloat64(obs.PaymentAuditTotal))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ORDER_1700000000000", line["order_id"])
	require.Equal(t, "50000", line["amount"])
	require.Equal(t, "DONE", line["status"])
}

func TestHandlePaymentConfirmedSkipsRetryOnGarbage(t *testing.T) {
	rec := audit.Recorder{}
	err := rec.HandlePaymentConfirmed(context.Background(), asynq.NewTask("event:payment.confirmed", []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEventLogsTopic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	rec := audit.Recorder{Logger: &logger}

	task := eventTask(t, events.TopicProductDeleted, map[string]string{"id": "1"})
	require.NoError(t, rec.HandleEvent(context.Background(), task))
	require.Contains(t, buf.String(), `"topic":"product.deleted"`)
}

func TestRegisterRoutesEveryTopic(t *testing.T) {
	mux := asynq.NewServeMux()
	audit.Recorder{}.Register(mux)

	for _, topic := range events.DefaultTopics() {
		h, pattern := mux.Handler(asynq.NewTask(events.TaskType(topic), nil))
		require.NotNil(t, h)
		require.Equal(t, events.TaskType(topic), pattern)
	}
}
