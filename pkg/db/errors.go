package db

import (
	"errors"
	"strings"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message. Service layers wrap driver
// errors in types whose Error() hides the cause, so every error in the Unwrap
// chain is inspected.
func IsUniqueViolation(err error, constraintName string) bool {
	for err != nil {
		msg := err.Error()
		if constraintName != "" {
			if strings.Contains(msg, constraintName) {
				return true
			}
		} else if strings.Contains(msg, "duplicate key value") {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
