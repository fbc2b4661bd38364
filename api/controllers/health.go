package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/collectibles-backend/api/responses"
	"github.com/angelmondragon/collectibles-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Health(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg != nil {
			w.Header().Set("X-Collectibles-Env", cfg.App.Env)
		}
		responses.WriteJSON(w, http.StatusOK, healthResponse{Status: "OK", Message: "Server is up and running"})
	}
}

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReady reports 503 when a configured dependency does not answer.
// Nil pingers are skipped; Redis is optional.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg != nil {
			w.Header().Set("X-Collectibles-Env", cfg.App.Env)
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]any{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
