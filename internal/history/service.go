package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// Entry is one normalized line of the merchant history feed. Ledger lines
// and subscription events share this shape; the optional fields depend on
// the source.
type Entry struct {
	ID         uuid.UUID             `json:"id"`
	MerchantID uuid.UUID             `json:"merchant_id"`
	OccurredAt time.Time             `json:"occurred_at"`
	FlowType   enums.HistoryFlowType `json:"flow_type"`
	// FlowID groups related entries: a payment's verification and its
	// balance credit share the payment request id.
	FlowID uuid.UUID `json:"flow_id"`

	TransactionType *enums.BalanceTransactionType `json:"transaction_type,omitempty"`
	Amount          *decimal.Decimal              `json:"amount,omitempty"`
	BalanceAfter    *decimal.Decimal              `json:"balance_after,omitempty"`
	Description     *string                       `json:"description,omitempty"`
	OrderID         *uuid.UUID                    `json:"order_id,omitempty"`

	EventType *enums.SubscriptionEventType `json:"event_type,omitempty"`
	FromType  *enums.SubscriptionType      `json:"from_type,omitempty"`
	ToType    *enums.SubscriptionType      `json:"to_type,omitempty"`
	Period    *ResolvedPeriod              `json:"period,omitempty"`
	Reason    *string                      `json:"reason,omitempty"`
}

// Params narrows and pages the feed.
type Params struct {
	Limit    int
	Offset   int
	FlowType *enums.HistoryFlowType
}

// Result carries one page of the feed. Total counts every entry that
// matched the filter, including order-fee rows hidden from the page.
type Result struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
}

// ServiceParams groups dependencies for the history projector.
type ServiceParams struct {
	Repo            Repository
	Logger          *logger.Logger
	DefaultPageSize int
}

// Service merges balance transactions and subscription events into one
// chronological merchant-facing feed.
type Service struct {
	repo     Repository
	logg     *logger.Logger
	pageSize int
}

// NewService builds a history service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	pageSize := params.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{repo: params.Repo, logg: params.Logger, pageSize: pageSize}, nil
}

// GetMerchantHistory returns one page of the merged feed, newest first. Raw
// order-fee rows are filtered from the returned page (they belong on the
// transactions report) unless explicitly requested, but still occupy their
// pagination slots so totals and windows stay stable.
func (s *Service) GetMerchantHistory(ctx context.Context, merchantID uuid.UUID, params Params) (*Result, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if params.FlowType != nil && !params.FlowType.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid flow type %q", *params.FlowType))
	}
	if params.Limit <= 0 {
		params.Limit = s.pageSize
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	// An unfiltered page needs at most offset+limit rows from each source,
	// since both are fetched newest first. Flow types are derived from row
	// shape rather than stored, so a filtered feed still scans the
	// merchant's full history.
	fetchLimit := 0
	if params.FlowType == nil {
		fetchLimit = params.Offset + params.Limit
	}

	transactions, err := s.repo.ListTransactions(ctx, merchantID, fetchLimit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading balance transactions")
	}
	events, err := s.repo.ListEvents(ctx, merchantID, fetchLimit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading subscription events")
	}

	feed := make([]Entry, 0, len(transactions)+len(events))
	for i := range transactions {
		feed = append(feed, projectTransaction(&transactions[i]))
	}
	for i := range events {
		entry, err := projectEvent(&events[i])
		if err != nil {
			return nil, err
		}
		feed = append(feed, entry)
	}

	if params.FlowType != nil {
		filtered := feed[:0]
		for _, entry := range feed {
			if entry.FlowType == *params.FlowType {
				filtered = append(filtered, entry)
			}
		}
		feed = filtered
	}

	sort.SliceStable(feed, func(i, j int) bool {
		if !feed[i].OccurredAt.Equal(feed[j].OccurredAt) {
			return feed[i].OccurredAt.After(feed[j].OccurredAt)
		}
		return feed[i].ID.String() > feed[j].ID.String()
	})

	total := int64(len(feed))
	if params.FlowType == nil {
		txTotal, err := s.repo.CountTransactions(ctx, merchantID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting balance transactions")
		}
		eventTotal, err := s.repo.CountEvents(ctx, merchantID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting subscription events")
		}
		total = txTotal + eventTotal
	}

	start := params.Offset
	if start > len(feed) {
		start = len(feed)
	}
	end := start + params.Limit
	if end > len(feed) {
		end = len(feed)
	}
	window := feed[start:end]

	page := make([]Entry, 0, len(window))
	for _, entry := range window {
		if params.FlowType == nil && entry.FlowType == enums.HistoryFlowOrderFee {
			continue
		}
		page = append(page, entry)
	}
	return &Result{Entries: page, Total: total}, nil
}

func projectTransaction(txn *models.BalanceTransaction) Entry {
	entry := Entry{
		ID:              txn.ID,
		MerchantID:      txn.MerchantID,
		OccurredAt:      txn.CreatedAt,
		FlowID:          txn.ID,
		TransactionType: &txn.Type,
		Amount:          &txn.Amount,
		BalanceAfter:    &txn.BalanceAfter,
		Description:     txn.Description,
		OrderID:         txn.OrderID,
	}
	if txn.PaymentRequestID != nil {
		entry.FlowID = *txn.PaymentRequestID
	}

	switch txn.Type {
	case enums.BalanceTransactionTypeOrderFee:
		entry.FlowType = enums.HistoryFlowOrderFee
	case enums.BalanceTransactionTypeDeposit:
		if txn.PaymentRequestID != nil {
			entry.FlowType = enums.HistoryFlowPaymentVerification
		} else {
			entry.FlowType = enums.HistoryFlowBalanceAdjustment
		}
	case enums.BalanceTransactionTypeSubscription:
		entry.FlowType = enums.HistoryFlowSubscriptionAdjustment
	default:
		entry.FlowType = enums.HistoryFlowBalanceAdjustment
	}
	return entry
}

func projectEvent(event *models.SubscriptionEvent) (Entry, error) {
	entry := Entry{
		ID:         event.ID,
		MerchantID: event.MerchantID,
		OccurredAt: event.CreatedAt,
		FlowID:     event.ID,
		EventType:  &event.Type,
		FromType:   event.FromType,
		ToType:     event.ToType,
		Reason:     event.Reason,
	}
	if event.PaymentRequestID != nil {
		entry.FlowID = *event.PaymentRequestID
		entry.FlowType = enums.HistoryFlowPaymentVerification
	} else {
		entry.FlowType = enums.HistoryFlowSubscriptionAdjustment
	}

	if event.PeriodFrom != nil || event.PeriodTo != nil || event.DaysDelta != nil {
		// Events may persist only one endpoint plus the delta; rebuild
		// the missing part.
		known := 0
		if event.PeriodFrom != nil {
			known++
		}
		if event.PeriodTo != nil {
			known++
		}
		if event.DaysDelta != nil {
			known++
		}
		if known >= 2 {
			period, err := ResolvePeriod(event.PeriodFrom, event.PeriodTo, event.DaysDelta)
			if err != nil {
				return Entry{}, apperrors.Wrap(apperrors.CodeInternal, err, "reconstructing event period")
			}
			entry.Period = &period
		}
	}
	return entry, nil
}
