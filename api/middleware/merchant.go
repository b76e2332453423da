package middleware

import (
	"net/http"

	"github.com/tavolo-app/tavolo-backend/api/responses"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// MerchantContext rejects requests whose token carries no merchant binding.
// Admin tokens have none and must use the admin surface instead.
func MerchantContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if MerchantIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
