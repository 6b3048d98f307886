package httpapi

import (
	"net/http"
	"time"

	"github.com/quillworks/inkwell/internal/store"
)

// StatusHandler reports service health. Sits behind the API-key gate like
// everything else, so it doubles as a cheap gate smoke test for clients.
func StatusHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := st.Ping(r.Context()); err != nil {
			status = "degraded"
		}

		writeSuccess(w, http.StatusOK, "success", map[string]string{
			"status":  status,
			"uptime":  time.Since(startTime).String(),
			"version": version,
		})
	}
}
