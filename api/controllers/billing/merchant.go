package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/api/controllers/merchantcontext"
	"github.com/tavolo-app/tavolo-backend/api/responses"
	"github.com/tavolo-app/tavolo-backend/api/validators"
	balancesvc "github.com/tavolo-app/tavolo-backend/internal/balance"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// BalanceService is the balance surface the controllers call.
type BalanceService interface {
	Get(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error)
	Adjust(ctx context.Context, params balancesvc.AdjustParams) (*models.BalanceTransaction, error)
	ListTransactions(ctx context.Context, merchantID uuid.UUID, filter balancesvc.TransactionFilter) ([]models.BalanceTransaction, int64, error)
}

// MerchantBalance returns the merchant's current balance. Merchants that were
// never adjusted get a zero-value view.
func MerchantBalance(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.Get(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBalanceView(row))
	}
}

type transactionListResponse struct {
	Transactions []transactionView `json:"transactions"`
	Total        int64             `json:"total"`
}

// MerchantBalanceTransactions pages the merchant's ledger, newest first.
func MerchantBalanceTransactions(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, total, err := svc.ListTransactions(ctx, merchantID, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionListResponse{
			Transactions: toTransactionViews(rows),
			Total:        total,
		})
	}
}

func parseTransactionFilter(r *http.Request) (balancesvc.TransactionFilter, error) {
	var filter balancesvc.TransactionFilter

	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
	if err != nil {
		return filter, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return filter, err
	}
	filter.Limit = limit
	filter.Offset = offset

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		txnType, parseErr := enums.ParseBalanceTransactionType(raw)
		if parseErr != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid type")
		}
		filter.Type = &txnType
	}
	return filter, nil
}
