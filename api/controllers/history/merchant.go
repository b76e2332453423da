package history

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/api/controllers/merchantcontext"
	"github.com/tavolo-app/tavolo-backend/api/responses"
	"github.com/tavolo-app/tavolo-backend/api/validators"
	historysvc "github.com/tavolo-app/tavolo-backend/internal/history"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

const maxPageSize = 100

// Service is the feed surface the controller calls.
type Service interface {
	GetMerchantHistory(ctx context.Context, merchantID uuid.UUID, params historysvc.Params) (*historysvc.Result, error)
}

// MerchantHistory pages the merged billing feed: verified payments, manual
// adjustments and subscription changes, newest first.
func MerchantHistory(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxPageSize)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params := historysvc.Params{Limit: limit, Offset: offset}

		if raw := strings.TrimSpace(r.URL.Query().Get("flow_type")); raw != "" {
			flowType, parseErr := enums.ParseHistoryFlowType(raw)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid flow type"))
				return
			}
			params.FlowType = &flowType
		}

		result, err := svc.GetMerchantHistory(ctx, merchantID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
