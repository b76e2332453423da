package merchantcontext

import (
	"net/http"

	"github.com/tavolo-app/tavolo-backend/api/middleware"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/google/uuid"
)

// ResolveMerchantID extracts the merchant binding from an authenticated request.
func ResolveMerchantID(r *http.Request) (uuid.UUID, error) {
	merchantID := middleware.MerchantIDFromContext(r.Context())
	if merchantID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context required")
	}
	id, err := uuid.Parse(merchantID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id")
	}
	return id, nil
}

// ResolveUserID extracts the authenticated user, when present.
func ResolveUserID(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
