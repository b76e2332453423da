package paymentrequests

import (
	"fmt"
	"time"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
)

// transitions is the closed table of legal status moves. Anything not listed
// is a STATE_CONFLICT; handlers never compare status strings ad hoc.
var transitions = map[enums.PaymentRequestStatus][]enums.PaymentRequestStatus{
	enums.PaymentRequestStatusPending: {
		enums.PaymentRequestStatusConfirmed,
		enums.PaymentRequestStatusCancelled,
		enums.PaymentRequestStatusExpired,
	},
	enums.PaymentRequestStatusConfirmed: {
		enums.PaymentRequestStatusVerified,
		enums.PaymentRequestStatusRejected,
		enums.PaymentRequestStatusCancelled,
		enums.PaymentRequestStatusExpired,
	},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to enums.PaymentRequestStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates the move and returns a typed error on an illegal one.
func Transition(from, to enums.PaymentRequestStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperrors.New(apperrors.CodeStateConflict,
		fmt.Sprintf("payment request cannot move from %s to %s", from, to))
}

// EffectiveStatus folds expiry into the stored status: a PENDING or CONFIRMED
// request whose window has lapsed reads as EXPIRED everywhere, even before
// the sweep persists it.
func EffectiveStatus(status enums.PaymentRequestStatus, expiresAt, now time.Time) enums.PaymentRequestStatus {
	if status.IsActive() && !now.Before(expiresAt) {
		return enums.PaymentRequestStatusExpired
	}
	return status
}
