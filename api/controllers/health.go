package controllers

import (
	"net/http"

	"github.com/moodegoozy/sofra-core/api/responses"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sofra-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every wired dependency answers a
// ping. Optional dependencies pass nil and are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sofra-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
