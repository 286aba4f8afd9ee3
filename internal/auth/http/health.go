package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// readyzTimeout bounds each dependency probe.
const readyzTimeout = 2 * time.Second

var errNoSigner = errors.New("no signing key loaded")

func healthResponse(status string, startTime time.Time, version string) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Version: version,
	}
}

// LivezHandler godoc
//
//	@Summary		Liveness Check Endpoint
//	@Description	Returns 200 while the process is serving. Dependencies are not probed.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse("ok", startTime, version))
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Probes the credential database, the signing key and the optional cache
//	@Description	Includes the number of stored credentials
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer jwtx.Signer,
	cache Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		checks := &authsdk.HealthChecks{Database: "ok", Signer: "ok"}
		healthy := true
		fail := func(err error) string {
			healthy = false
			return "error: " + err.Error()
		}

		if err := st.Ping(ctx); err != nil {
			checks.Database = fail(err)
		} else if n, err := st.Credentials().Count(ctx); err != nil {
			checks.Database = fail(err)
		} else {
			checks.Users = n
		}

		if signer == nil {
			checks.Signer = fail(errNoSigner)
		} else if err := signer.Validate(); err != nil {
			checks.Signer = fail(err)
		}

		if cache != nil {
			checks.Cache = "ok"
			if err := cache.Ping(ctx); err != nil {
				checks.Cache = fail(err)
			}
		}

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		resp := healthResponse(status, startTime, version)
		resp.Checks = checks
		httpx.WriteJSON(w, code, resp)
	}
}
