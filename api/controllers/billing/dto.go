package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/api/validators"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
)

type paymentRequestView struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	MonthsRequested   int        `json:"months_requested,omitempty"`
	BankName          string     `json:"bank_name"`
	BankAccountNumber string     `json:"bank_account_number"`
	BankAccountName   string     `json:"bank_account_name"`
	TransferNotes     *string    `json:"transfer_notes,omitempty"`
	TransferProofURL  *string    `json:"transfer_proof_url,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
	RejectReason      *string    `json:"reject_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toPaymentRequestView(row *models.PaymentRequest) paymentRequestView {
	return paymentRequestView{
		ID:                row.ID.String(),
		Type:              string(row.Type),
		Status:            string(row.Status),
		Amount:            row.Amount.StringFixed(2),
		Currency:          string(row.Currency),
		MonthsRequested:   row.MonthsRequested,
		BankName:          row.BankName,
		BankAccountNumber: row.BankAccountNumber,
		BankAccountName:   row.BankAccountName,
		TransferNotes:     row.TransferNotes,
		TransferProofURL:  row.TransferProofURL,
		ExpiresAt:         row.ExpiresAt.UTC(),
		ConfirmedAt:       row.ConfirmedAt,
		ProcessedAt:       row.ProcessedAt,
		RejectReason:      row.RejectReason,
		CreatedAt:         row.CreatedAt.UTC(),
	}
}

func toPaymentRequestViews(rows []models.PaymentRequest) []paymentRequestView {
	views := make([]paymentRequestView, len(rows))
	for i := range rows {
		views[i] = toPaymentRequestView(&rows[i])
	}
	return views
}

type balanceView struct {
	MerchantID string `json:"merchant_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

func toBalanceView(row *models.Balance) balanceView {
	return balanceView{
		MerchantID: row.MerchantID.String(),
		Amount:     row.Amount.StringFixed(2),
		Currency:   string(row.Currency),
	}
}

type transactionView struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Amount           string    `json:"amount"`
	BalanceBefore    string    `json:"balance_before"`
	BalanceAfter     string    `json:"balance_after"`
	Currency         string    `json:"currency"`
	Description      *string   `json:"description,omitempty"`
	OrderID          *string   `json:"order_id,omitempty"`
	PaymentRequestID *string   `json:"payment_request_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toTransactionView(row *models.BalanceTransaction) transactionView {
	view := transactionView{
		ID:            row.ID.String(),
		Type:          string(row.Type),
		Amount:        row.Amount.StringFixed(2),
		BalanceBefore: row.BalanceBefore.StringFixed(2),
		BalanceAfter:  row.BalanceAfter.StringFixed(2),
		Currency:      string(row.Currency),
		Description:   row.Description,
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if row.OrderID != nil {
		id := row.OrderID.String()
		view.OrderID = &id
	}
	if row.PaymentRequestID != nil {
		id := row.PaymentRequestID.String()
		view.PaymentRequestID = &id
	}
	return view
}

func toTransactionViews(rows []models.BalanceTransaction) []transactionView {
	views := make([]transactionView, len(rows))
	for i := range rows {
		views[i] = toTransactionView(&rows[i])
	}
	return views
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// sanitizeFreeText trims free-form input and collapses empty strings to nil
// so the row stores NULL instead of "".
func sanitizeFreeText(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*value, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
