package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/HydroGest/lmarena/logging"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRecentLimit is how many generations /status lists by default.
const DefaultRecentLimit = 20

// NewHandler serves /metrics (Prometheus text format), /status (JSON
// Summary, ?recent=N) and /healthz.
func NewHandler(c *Collector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{
		Registry: c.Registry(),
	}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		store := c.Store()
		if store == nil {
			http.Error(w, "status store disabled", http.StatusNotFound)
			return
		}
		limit := DefaultRecentLimit
		if raw := r.URL.Query().Get("recent"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "recent must be a non-negative integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(store.Summary(limit))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer returns an unstarted server for addr that logs each request to
// log. The caller runs ListenAndServe and registers shutdown.HTTPServer for
// it.
func NewServer(addr string, c *Collector, log *logging.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           LogRequests(log, NewHandler(c)),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
