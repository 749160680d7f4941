package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/voicesurvey/platform/internal/pkg/httputil"
)

// healthStatus mirrors the teacher's health-check envelope, trimmed to the
// dependencies the api process actually uses (database only — it holds no
// Redis or S3 client).
type healthStatus struct {
	Status string                    `json:"status"`
	Uptime string                    `json:"uptime"`
	Checks map[string]componentCheck `json:"checks"`
}

type componentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthHandlers struct {
	db        *sql.DB
	startTime time.Time
}

// handleHealth reports overall status; always 200, status field conveys
// health (probes needing a failing HTTP code should use /health/ready).
//
//	GET /health
func (hc *healthHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runChecks(r.Context())
	httputil.OK(w, healthStatus{
		Status: overallStatus(checks),
		Uptime: time.Since(hc.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// handleLiveness is a bare liveness probe.
//
//	GET /health/live
func (hc *healthHandlers) handleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "alive"})
}

// handleReadiness returns 503 when the database is unreachable.
//
//	GET /health/ready
func (hc *healthHandlers) handleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runChecks(r.Context())
	status := overallStatus(checks)
	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

func (hc *healthHandlers) runChecks(ctx context.Context) map[string]componentCheck {
	return map[string]componentCheck{"database": hc.checkDatabase(ctx)}
}

func (hc *healthHandlers) checkDatabase(ctx context.Context) componentCheck {
	if hc.db == nil {
		return componentCheck{Status: "down", Message: "not configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	latency := time.Since(start)
	if err != nil {
		return componentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return componentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

func overallStatus(checks map[string]componentCheck) string {
	for _, c := range checks {
		if c.Status == "down" {
			return "unhealthy"
		}
	}
	return "healthy"
}
