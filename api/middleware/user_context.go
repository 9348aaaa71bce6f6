package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/danmarrec/storelane-backend/api/responses"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

// Authentication happens upstream (gateway or proxy); this service trusts
// the X-User-Id header it forwards.
const userIDHeader = "X-User-Id"

type userIDKey struct{}

// UserContext extracts the caller's user id into the request context and
// rejects requests that arrive without one.
func UserContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := r.Header.Get(userIDHeader)
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id header required"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id header must be a uuid"))
				return
			}

			ctx = context.WithValue(ctx, userIDKey{}, userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID stores the caller's user id in the context. Exposed for
// handlers under test; requests go through UserContext in production.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return userID, ok
}
