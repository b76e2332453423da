package enums

import "fmt"

// BalanceTransactionType classifies an append-only ledger entry.
type BalanceTransactionType string

const (
	BalanceTransactionTypeDeposit      BalanceTransactionType = "deposit"
	BalanceTransactionTypeOrderFee     BalanceTransactionType = "order_fee"
	BalanceTransactionTypeSubscription BalanceTransactionType = "subscription"
	BalanceTransactionTypeRefund       BalanceTransactionType = "refund"
	BalanceTransactionTypeAdjustment   BalanceTransactionType = "adjustment"
)

var validBalanceTransactionTypes = []BalanceTransactionType{
	BalanceTransactionTypeDeposit,
	BalanceTransactionTypeOrderFee,
	BalanceTransactionTypeSubscription,
	BalanceTransactionTypeRefund,
	BalanceTransactionTypeAdjustment,
}

// String implements fmt.Stringer.
func (t BalanceTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t BalanceTransactionType) IsValid() bool {
	for _, candidate := range validBalanceTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBalanceTransactionType converts raw input into a BalanceTransactionType.
func ParseBalanceTransactionType(value string) (BalanceTransactionType, error) {
	for _, candidate := range validBalanceTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid balance transaction type %q", value)
}
