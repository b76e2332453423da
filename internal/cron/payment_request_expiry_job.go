package cron

import (
	"context"
	"fmt"

	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

const defaultExpiryBatchSize = 500

// PaymentRequestExpiryJobParams configures the payment request expiry sweep.
type PaymentRequestExpiryJobParams struct {
	Logger    *logger.Logger
	Requests  paymentRequestExpirer
	BatchSize int
}

type paymentRequestExpirer interface {
	ExpireLapsed(ctx context.Context, batchSize int) (int, error)
}

// NewPaymentRequestExpiryJob builds the job that persists EXPIRED for active
// payment requests whose window already passed. Readers fold expiry lazily,
// so the sweep only brings stored rows in line with what readers already
// return.
func NewPaymentRequestExpiryJob(params PaymentRequestExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Requests == nil {
		return nil, fmt.Errorf("payment request service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultExpiryBatchSize
	}
	return &paymentRequestExpiryJob{
		logg:      params.Logger,
		requests:  params.Requests,
		batchSize: batchSize,
	}, nil
}

type paymentRequestExpiryJob struct {
	logg      *logger.Logger
	requests  paymentRequestExpirer
	batchSize int
}

func (j *paymentRequestExpiryJob) Name() string { return "payment-request-expiry" }

func (j *paymentRequestExpiryJob) Run(ctx context.Context) error {
	expired, err := j.requests.ExpireLapsed(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("payment request expiry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch_size":   j.batchSize,
		"rows_expired": expired,
	})
	j.logg.Info(logCtx, "payment request expiry sweep complete")
	return nil
}
