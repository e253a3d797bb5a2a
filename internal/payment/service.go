package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toss-checkout/internal/common"
	"github.com/noah-isme/toss-checkout/internal/events"
	"github.com/noah-isme/toss-checkout/internal/obs"
)

// Messages returned by the confirmation endpoint.
const (
	MsgMissingParams = "필수 파라미터가 누락되었습니다"
	MsgConfirmFailed = "결제 승인에 실패했습니다"
	MsgServerError   = "서버 오류가 발생했습니다"
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Confirmer is the provider capability the service needs.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (UpstreamResponse, error)
}

// Service confirms authorised payments with the provider.
type Service struct {
	Provider Confirmer
	Events   Emitter
	Logger   *zerolog.Logger
}

// Confirm validates the triple, forwards it upstream once and returns the provider's
// payment object marked with success=true. Failures are *common.AppError values:
// validation (400), upstream rejection (provider status) or transport (500).
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) (map[string]any, error) {
	if s == nil || s.Provider == nil {
		return nil, common.Transport(MsgServerError, errors.New("payment service not configured"))
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Confirm")
	defer span.End()

	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentKey = strings.TrimSpace(req.PaymentKey)
	span.SetAttributes(attribute.String("order.id", req.OrderID), attribute.Int64("payment.amount", req.Amount))

	result := "error"
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.String("payment.confirm.result", result))
		if obs.PaymentConfirmTotal != nil {
			obs.PaymentConfirmTotal.WithLabelValues(result).Inc()
		}
	}()

	if req.Missing() {
		result = "invalid"
		return nil, common.Validation("INVALID_REQUEST", MsgMissingParams, nil)
	}

	resp, err := s.Provider.Confirm(ctx, req, idempotencyKey)
	if obs.PaymentConfirmLatency != nil {
		obs.PaymentConfirmLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm transport failure")
		s.logger().Error().Err(err).Str("order_id", req.OrderID).Msg("payment confirm failed")
		s.emit(ctx, events.TopicPaymentConfirmFailed, req.OrderID, map[string]any{"orderId": req.OrderID, "amount": req.Amount, "reason": "transport"})
		return nil, common.Transport(MsgServerError, err)
	}
	span.SetAttributes(attribute.Int("payment.upstream.status", resp.Status))

	if !resp.OK() {
		result = "rejected"
		code, message := upstreamError(resp.Body)
		if message == "" {
			message = MsgConfirmFailed
		}
		s.logger().Warn().Str("order_id", req.OrderID).Int("status", resp.Status).Str("code", code).Msg("payment confirm rejected")
		s.emit(ctx, events.TopicPaymentConfirmFailed, req.OrderID, map[string]any{"orderId": req.OrderID, "amount": req.Amount, "code": code, "status": resp.Status})
		return nil, common.Upstream(resp.Status, code, message)
	}

	result = "success"
	out := make(map[string]any, len(resp.Body)+1)
	for k, v := range resp.Body {
		out[k] = v
	}
	out["success"] = true
	s.emit(ctx, events.TopicPaymentConfirmed, req.OrderID, map[string]any{
		"orderId":    req.OrderID,
		"paymentKey": req.PaymentKey,
		"amount":     req.Amount,
		"status":     stringField(resp.Body, "status"),
	})
	return out, nil
}

func (s *Service) emit(ctx context.Context, topic, orderID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, orderID, payload); err != nil {
		s.logger().Warn().Err(err).Str("topic", topic).Msg("emit payment event")
	}
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zerolog.Ctx(context.Background())
}
