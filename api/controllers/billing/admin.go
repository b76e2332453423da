package billing

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/api/controllers/merchantcontext"
	"github.com/tavolo-app/tavolo-backend/api/responses"
	"github.com/tavolo-app/tavolo-backend/api/validators"
	balancesvc "github.com/tavolo-app/tavolo-backend/internal/balance"
	paymentsvc "github.com/tavolo-app/tavolo-backend/internal/paymentrequests"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// AdminPaymentRequestService is the review surface behind the admin routes.
type AdminPaymentRequestService interface {
	List(ctx context.Context, filter paymentsvc.ListFilter) ([]models.PaymentRequest, int64, error)
	Verify(ctx context.Context, requestID, adminUserID uuid.UUID) (*models.PaymentRequest, error)
	Reject(ctx context.Context, requestID, adminUserID uuid.UUID, reason string) (*models.PaymentRequest, error)
}

// AdminPaymentRequestList pages payment requests across all merchants,
// optionally narrowed by status; CONFIRMED is the review queue.
func AdminPaymentRequestList(svc AdminPaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		filter, err := parseListFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, total, err := svc.List(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentRequestListResponse{
			Requests: toPaymentRequestViews(rows),
			Total:    total,
		})
	}
}

// AdminPaymentRequestVerify approves a confirmed transfer. Its balance credit
// or period extension lands in the same transaction.
func AdminPaymentRequestVerify(svc AdminPaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		adminUserID, err := resolveAdminUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		requestID, err := parseRequestID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.Verify(ctx, requestID, adminUserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentRequestView(row))
	}
}

type rejectPaymentRequestBody struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AdminPaymentRequestReject declines a confirmed transfer with a reason the
// merchant will see.
func AdminPaymentRequestReject(svc AdminPaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		adminUserID, err := resolveAdminUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		requestID, err := parseRequestID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body rejectPaymentRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.Reject(ctx, requestID, adminUserID, validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentRequestView(row))
	}
}

type balanceAdjustmentBody struct {
	Amount      string `json:"amount" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=adjustment refund"`
	Description string `json:"description" validate:"required,max=500"`
}

// AdminBalanceAdjust appends a manual ledger entry for a merchant. A debit
// that would take the balance negative is refused.
func AdminBalanceAdjust(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		adminUserID, err := resolveAdminUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		merchantID, err := parseMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body balanceAdjustmentBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, ok := parseAmount(body.Amount)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string"))
			return
		}
		txnType, err := enums.ParseBalanceTransactionType(body.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}

		txn, err := svc.Adjust(ctx, balancesvc.AdjustParams{
			MerchantID:   merchantID,
			Amount:       amount,
			Type:         txnType,
			Description:  validators.SanitizeString(body.Description, 500),
			ActingUserID: &adminUserID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTransactionView(txn))
	}
}

type ledgerResponse struct {
	Balance      balanceView       `json:"balance"`
	Transactions []transactionView `json:"transactions"`
	Total        int64             `json:"total"`
}

// AdminMerchantLedger returns a merchant's balance and full ledger for
// reconciliation.
func AdminMerchantLedger(svc BalanceService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := parseMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		balanceRow, err := svc.Get(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, total, err := svc.ListTransactions(ctx, merchantID, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledgerResponse{
			Balance:      toBalanceView(balanceRow),
			Transactions: toTransactionViews(rows),
			Total:        total,
		})
	}
}

func parseMerchantID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "merchantId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id")
	}
	return id, nil
}

func resolveAdminUserID(r *http.Request) (uuid.UUID, error) {
	id := merchantcontext.ResolveUserID(r)
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return *id, nil
}
