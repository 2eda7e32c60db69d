package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/gluster-iot/iothreads/pkg/iothreads"
)

// httpClient is used by the status subcommand to fetch /status from a
// running iothreadsd; kept as a package-level client with a short timeout
// rather than http.DefaultClient,
// the way the teacher's proxy.go shares one configured client across
// handlers instead of constructing one per request.
var httpClient = &http.Client{Timeout: 5 * time.Second}

func newMux(pool *iothreads.Pool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		handleStatus(w, pool)
	})

	mux.HandleFunc("/introspect/queue-size", func(w http.ResponseWriter, r *http.Request) {
		handleQueueSize(w, pool)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func handleStatus(w http.ResponseWriter, pool *iothreads.Pool) {
	dump := pool.Dump()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(dump); err != nil {
		log.Error().Err(err).Msg("iothreadsd: failed to encode status")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleQueueSize answers the distinguished introspection query,
// mirroring the original's IO_THREADS_QUEUE_SIZE_KEY getxattr interception.
func handleQueueSize(w http.ResponseWriter, pool *iothreads.Pool) {
	sizes := pool.QueueSizes()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sizes); err != nil {
		log.Error().Err(err).Msg("iothreadsd: failed to encode queue sizes")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
