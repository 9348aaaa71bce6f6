package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/danmarrec/storelane-backend/api/responses"
	"github.com/danmarrec/storelane-backend/pkg/config"
	"github.com/danmarrec/storelane-backend/pkg/db"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storelane-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether the datastores this service depends on are
// reachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storelane-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := []struct {
			name string
			ping func(context.Context) error
		}{
			{"postgres", dbP.Ping},
			{"redis", redisP.Ping},
		}
		for _, check := range checks {
			if err := check.ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency unreachable").
						WithDetails(map[string]any{"dependency": check.name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
