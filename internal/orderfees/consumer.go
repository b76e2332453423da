package orderfees

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

const orderCompletedEvent = "order.completed"

type feeService interface {
	OnOrderCompleted(ctx context.Context, merchantID, orderID uuid.UUID, fee decimal.Decimal) error
}

// Consumer feeds completed-order notifications from the order platform into
// the fee hook. Charging is idempotent per order, so redelivery is safe.
type Consumer struct {
	fees         feeService
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(fees feeService, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if fees == nil {
		return nil, errors.New("order fee service is required")
	}
	if subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		fees:         fees,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

type orderCompletedPayload struct {
	MerchantID uuid.UUID       `json:"merchant_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	Fee        decimal.Decimal `json:"fee"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	})
	if eventType, ok := msg.Attributes["event_type"]; ok && eventType != orderCompletedEvent {
		c.logg.Info(logCtx, "skipping non-order-completed event")
		return processResult{ack: true}
	}

	var payload orderCompletedPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to unmarshal order payload", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"merchant_id": payload.MerchantID.String(),
		"order_id":    payload.OrderID.String(),
		"fee":         payload.Fee.String(),
	})

	if err := c.fees.OnOrderCompleted(ctx, payload.MerchantID, payload.OrderID, payload.Fee); err != nil {
		if isRetryable(err) {
			c.logg.Error(logCtx, "order fee deduction failed, requeueing", err)
			return processResult{nack: true}
		}
		// Malformed or unknown references never heal on redelivery.
		c.logg.Error(logCtx, "dropping uncollectible order fee message", err)
		return processResult{ack: true}
	}
	return processResult{ack: true}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if typed := apperrors.As(err); typed != nil {
		return apperrors.MetadataFor(typed.Code()).Retryable
	}
	return true
}
