package history

import (
	"math"
	"time"

	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
)

// ResolvedPeriod is a fully reconstructed period-extension window.
type ResolvedPeriod struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	DaysDelta int       `json:"days_delta"`
}

// ResolvePeriod reconstructs a period triple from any two of its parts.
// Events sometimes persist only one endpoint plus the delta; every caller
// goes through this single dispatch point so forward and backward derivation
// round-trip exactly (days are whole days in UTC, applied with AddDate).
func ResolvePeriod(from, to *time.Time, daysDelta *int) (ResolvedPeriod, error) {
	switch {
	case from != nil && to != nil:
		f, t := from.UTC(), to.UTC()
		if t.Before(f) {
			return ResolvedPeriod{}, apperrors.New(apperrors.CodeValidation, "period end precedes period start")
		}
		return ResolvedPeriod{From: f, To: t, DaysDelta: wholeDays(f, t)}, nil
	case from != nil && daysDelta != nil:
		if *daysDelta < 0 {
			return ResolvedPeriod{}, apperrors.New(apperrors.CodeValidation, "days delta must be non-negative")
		}
		f := from.UTC()
		return ResolvedPeriod{From: f, To: f.AddDate(0, 0, *daysDelta), DaysDelta: *daysDelta}, nil
	case to != nil && daysDelta != nil:
		if *daysDelta < 0 {
			return ResolvedPeriod{}, apperrors.New(apperrors.CodeValidation, "days delta must be non-negative")
		}
		t := to.UTC()
		return ResolvedPeriod{From: t.AddDate(0, 0, -*daysDelta), To: t, DaysDelta: *daysDelta}, nil
	default:
		return ResolvedPeriod{}, apperrors.New(apperrors.CodeValidation, "at least two of period start, period end and days delta are required")
	}
}

func wholeDays(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
