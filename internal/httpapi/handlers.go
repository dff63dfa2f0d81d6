// Package httpapi exposes the operational surface: liveness, readiness,
// metrics and build info. Business operations live behind the directory
// services and are mounted by the deployment-specific transport.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"cloudsync.org/internal/health"
	"cloudsync.org/internal/obs"
)

// ReadyProbe pings the backing store directly, independent of the monitor's
// cached snapshot.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type API struct {
	mux        *http.ServeMux
	monitor    *health.Monitor
	readyProbe ReadyProbe
	version    string
}

func New(monitor *health.Monitor, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		monitor:    monitor,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with metrics, logging, security headers and a
// per-client rate limit.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = RateLimit(h, 20, 10)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// Healthz reports the liveness monitor's latest snapshot. Degraded answers
// 503 so operational tooling can detect the fault without parsing the body.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	snap := a.monitor.Snapshot()
	code := http.StatusOK
	if snap.Status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":          snap.Status,
		"last_checked_at": snap.LastCheckedAt.Format(time.RFC3339),
		"detail":          snap.Detail,
		"service":         "cloudsync-directory",
		"version":         a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  health.MaskSecrets(err.Error()),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "cloudsync-directory",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
