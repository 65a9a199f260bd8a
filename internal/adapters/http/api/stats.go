package api

import (
	"net/http"
	"time"
)

// StatsProvider reports runtime counters of the comparables service.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats: the provider's counters plus server uptime.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a stats handler. Uptime counts from this call.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]interface{}{}
	if h.provider != nil {
		for k, v := range h.provider.GetStats() {
			out[k] = v
		}
	}
	out["uptimeSeconds"] = int64(time.Since(h.started).Seconds())
	writeJSON(w, http.StatusOK, out)
}
