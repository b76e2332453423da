package orderfees

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

type recordedCharge struct {
	merchantID uuid.UUID
	orderID    uuid.UUID
	fee        decimal.Decimal
}

type recordingFeeService struct {
	err     error
	charges []recordedCharge
}

func (r *recordingFeeService) OnOrderCompleted(ctx context.Context, merchantID, orderID uuid.UUID, fee decimal.Decimal) error {
	r.charges = append(r.charges, recordedCharge{merchantID: merchantID, orderID: orderID, fee: fee})
	return r.err
}

func newTestConsumer(t *testing.T, fees feeService) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "order-worker-test", Output: io.Discard})
	consumer, err := NewConsumer(fees, &pubsub.Subscriber{}, logg)
	require.NoError(t, err)
	return consumer
}

func buildOrderMessage(t *testing.T, merchantID, orderID uuid.UUID, fee string) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(orderCompletedPayload{
		MerchantID: merchantID,
		OrderID:    orderID,
		Fee:        decimal.RequireFromString(fee),
	})
	require.NoError(t, err)
	return &pubsub.Message{
		Attributes: map[string]string{"event_type": orderCompletedEvent},
		Data:       data,
	}
}

func TestConsumerChargesCompletedOrder(t *testing.T) {
	fees := &recordingFeeService{}
	consumer := newTestConsumer(t, fees)
	merchantID := uuid.New()
	orderID := uuid.New()

	result := consumer.process(context.Background(), buildOrderMessage(t, merchantID, orderID, "3.50"))
	assert.True(t, result.ack)
	assert.False(t, result.nack)
	require.Len(t, fees.charges, 1)
	assert.Equal(t, merchantID, fees.charges[0].merchantID)
	assert.Equal(t, orderID, fees.charges[0].orderID)
	assert.True(t, fees.charges[0].fee.Equal(decimal.RequireFromString("3.50")))
}

func TestConsumerSkipsForeignEventTypes(t *testing.T) {
	fees := &recordingFeeService{}
	consumer := newTestConsumer(t, fees)

	result := consumer.process(context.Background(), &pubsub.Message{
		Attributes: map[string]string{"event_type": "order.cancelled"},
		Data:       []byte(`{}`),
	})
	assert.True(t, result.ack)
	assert.Empty(t, fees.charges)
}

func TestConsumerDropsMalformedPayload(t *testing.T) {
	fees := &recordingFeeService{}
	consumer := newTestConsumer(t, fees)

	result := consumer.process(context.Background(), &pubsub.Message{
		Attributes: map[string]string{"event_type": orderCompletedEvent},
		Data:       []byte(`{"merchant_id":`),
	})
	assert.True(t, result.ack, "malformed payloads never heal on redelivery")
	assert.Empty(t, fees.charges)
}

func TestConsumerNacksOnRetryableFailure(t *testing.T) {
	fees := &recordingFeeService{
		err: apperrors.Wrap(apperrors.CodeInternal, context.DeadlineExceeded, "appending balance transaction"),
	}
	consumer := newTestConsumer(t, fees)

	result := consumer.process(context.Background(), buildOrderMessage(t, uuid.New(), uuid.New(), "2.00"))
	assert.True(t, result.nack)
}

func TestConsumerDropsNonRetryableFailure(t *testing.T) {
	fees := &recordingFeeService{
		err: apperrors.New(apperrors.CodeValidation, "fee must be positive"),
	}
	consumer := newTestConsumer(t, fees)

	result := consumer.process(context.Background(), buildOrderMessage(t, uuid.New(), uuid.New(), "1.00"))
	assert.True(t, result.ack)
	assert.False(t, result.nack)
}
