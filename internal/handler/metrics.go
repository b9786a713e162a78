package handler

import (
	"fmt"
	"net/http"

	"github.com/itemdesk/itemdesk/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler. A nil snapshotter makes
// the endpoint answer 503.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns counters in Prometheus text exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "itemdesk_registrations_total", "Accounts created.", snap.Registrations)
	writeCounter(w, "itemdesk_registration_conflicts_total", "Registrations rejected for a taken username.", snap.RegistrationConflicts)

	writeMetric(w, "# HELP itemdesk_logins_total Login attempts by outcome.\n")
	writeMetric(w, "# TYPE itemdesk_logins_total counter\n")
	writeMetric(w, "itemdesk_logins_total{outcome=\"success\"} %d\n", snap.LoginSuccesses)
	writeMetric(w, "itemdesk_logins_total{outcome=\"failure\"} %d\n", snap.LoginFailures)

	writeCounter(w, "itemdesk_items_created_total", "Items added.", snap.ItemsCreated)
}

func writeCounter(w http.ResponseWriter, name, help string, value uint64) {
	writeMetric(w, "# HELP %s %s\n", name, help)
	writeMetric(w, "# TYPE %s counter\n", name)
	writeMetric(w, "%s %d\n", name, value)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
