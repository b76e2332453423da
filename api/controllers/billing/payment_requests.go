package billing

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/api/controllers/merchantcontext"
	"github.com/tavolo-app/tavolo-backend/api/responses"
	"github.com/tavolo-app/tavolo-backend/api/validators"
	paymentsvc "github.com/tavolo-app/tavolo-backend/internal/paymentrequests"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

const maxPageSize = 100

// PaymentRequestService is the workflow surface the controllers call.
type PaymentRequestService interface {
	Create(ctx context.Context, params paymentsvc.CreateParams) (*models.PaymentRequest, error)
	Confirm(ctx context.Context, merchantID, requestID uuid.UUID, params paymentsvc.ConfirmParams) (*models.PaymentRequest, error)
	Cancel(ctx context.Context, merchantID, requestID uuid.UUID) (*models.PaymentRequest, error)
	GetActive(ctx context.Context, merchantID uuid.UUID) (*models.PaymentRequest, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, filter paymentsvc.ListFilter) ([]models.PaymentRequest, int64, error)
}

type createPaymentRequestBody struct {
	Type            string  `json:"type" validate:"required"`
	Amount          string  `json:"amount" validate:"required"`
	MonthsRequested int     `json:"months_requested" validate:"min=0,max=24"`
	TransferNotes   *string `json:"transfer_notes" validate:"omitempty,max=500"`
}

// MerchantPaymentRequestCreate opens a new bank-transfer payment request.
func MerchantPaymentRequestCreate(svc PaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body createPaymentRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		requestType, err := enums.ParsePaymentRequestType(body.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		amount, ok := parseAmount(body.Amount)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string"))
			return
		}

		row, err := svc.Create(ctx, paymentsvc.CreateParams{
			MerchantID:      merchantID,
			Type:            requestType,
			Amount:          amount,
			MonthsRequested: body.MonthsRequested,
			TransferNotes:   sanitizeFreeText(body.TransferNotes, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toPaymentRequestView(row))
	}
}

// MerchantPaymentRequestActive returns the merchant's single active request,
// or null when none is open.
func MerchantPaymentRequestActive(svc PaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.GetActive(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if row == nil {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, toPaymentRequestView(row))
	}
}

type paymentRequestListResponse struct {
	Requests []paymentRequestView `json:"requests"`
	Total    int64                `json:"total"`
}

// MerchantPaymentRequestList pages the merchant's payment request history.
func MerchantPaymentRequestList(svc PaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter, err := parseListFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, total, err := svc.ListByMerchant(ctx, merchantID, filter)
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

type confirmPaymentRequestBody struct {
	TransferProofURL *string `json:"transfer_proof_url" validate:"omitempty,url,max=2048"`
	TransferNotes    *string `json:"transfer_notes" validate:"omitempty,max=500"`
}

// MerchantPaymentRequestConfirm marks the transfer as sent.
func MerchantPaymentRequestConfirm(svc PaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		requestID, err := parseRequestID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body confirmPaymentRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.Confirm(ctx, merchantID, requestID, paymentsvc.ConfirmParams{
			TransferProofURL: body.TransferProofURL,
			TransferNotes:    sanitizeFreeText(body.TransferNotes, 500),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentRequestView(row))
	}
}

// MerchantPaymentRequestCancel withdraws an active request, freeing the slot.
func MerchantPaymentRequestCancel(svc PaymentRequestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		requestID, err := parseRequestID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		row, err := svc.Cancel(ctx, merchantID, requestID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPaymentRequestView(row))
	}
}

func parseRequestID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "requestId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id")
	}
	return id, nil
}

func parseListFilter(r *http.Request) (paymentsvc.ListFilter, error) {
	var filter paymentsvc.ListFilter

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

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, parseErr := enums.ParsePaymentRequestStatus(raw)
		if parseErr != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status")
		}
		filter.Status = &status
	}
	return filter, nil
}
