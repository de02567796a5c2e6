package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// Healthz handles GET /healthz. Always 200 while the process is up.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).Truncate(time.Second).String(),
	})
}

// ReadyCheck reports whether a dependency is ready to serve.
type ReadyCheck func(r *http.Request) error

// Readyz returns a readiness handler over the given named checks. Any failing
// check flips the response to 503 and names the component.
func Readyz(checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r); err != nil {
				status = http.StatusServiceUnavailable
				components[name] = err.Error()
				continue
			}
			components[name] = "ok"
		}

		writeJSON(w, status, map[string]any{
			"status":     readyLabel(status),
			"components": components,
		})
	}
}

func readyLabel(status int) string {
	if status == http.StatusOK {
		return "ready"
	}
	return "unavailable"
}
