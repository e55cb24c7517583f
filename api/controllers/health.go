package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/lendcart/api/responses"
	"github.com/angelmondragon/lendcart/pkg/config"
	pkgerrors "github.com/angelmondragon/lendcart/pkg/errors"
	"github.com/angelmondragon/lendcart/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one checked dependency.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lendcart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every check and reports 502 with the failing names when
// any of them is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lendcart-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		failing := map[string]string{}
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				failing[check.Name] = err.Error()
			}
		}
		if len(failing) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies not ready").WithDetails(map[string]any{
				"failing": failing,
			}))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
