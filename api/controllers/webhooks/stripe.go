package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/danmarrec/storelane-backend/api/responses"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// Stripe verifies the event signature, filters duplicate deliveries, and
// hands the event to the reconciliation service. Mismatches between the
// event and our records are logged and acknowledged with 200 so Stripe
// stops redelivering an event we will never be able to apply.
func Stripe(client stripeClient, guard stripeWebhookGuard, svc StripeWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to read webhook payload"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeInvalidSignature, "missing Stripe-Signature header"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "webhook signature verification failed"))
			return
		}

		ctx = logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})

		alreadySeen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check failed"))
			return
		}
		if alreadySeen {
			logg.Info(ctx, "duplicate webhook delivery skipped")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeReconciliationMismatch) {
				// The event is authentic but contradicts our records.
				// Retrying cannot fix that, so ack and leave the guard
				// key in place.
				logg.Error(ctx, "webhook reconciliation mismatch", err)
				responses.WriteSuccess(w, nil)
				return
			}
			// Transient failure: clear the guard so Stripe's retry gets
			// a clean attempt.
			if delErr := guard.Delete(ctx, event.ID); delErr != nil {
				logg.Error(ctx, "failed to clear idempotency key", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
