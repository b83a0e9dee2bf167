package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/jonboulle/clockwork"
)

// LivezHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Liveness probe, 200 OK whenever the process is serving
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(clock clockwork.Clock, startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  clock.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the database and that signing keys are loaded
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	HealthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	clock clockwork.Clock,
	startTime time.Time,
	version string,
	st store.Store,
	keys ...*jwtx.KeyManager,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Database: "ok", Signer: "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		for _, km := range keys {
			if !km.IsReady() {
				checks.Signer = "error: no keys loaded"
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  clock.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
