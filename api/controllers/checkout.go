package controllers

import (
	"net/http"

	"github.com/danmarrec/storelane-backend/api/middleware"
	"github.com/danmarrec/storelane-backend/api/responses"
	"github.com/danmarrec/storelane-backend/internal/checkout"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

// CheckoutStart reserves stock for an order and returns the gateway URL to
// pay for it. Calling it again while a session is live returns the same URL.
func CheckoutStart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user context missing"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Start(ctx, userID, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
