// Package health serves liveness, metrics and queue status over HTTP.
package health

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"complaintmail/internal/metrics"
	"complaintmail/queue"
)

// QueueStatus is the read-only view of the dispatcher exposed on /queue.
type QueueStatus interface {
	Status() queue.Status
	InterDelay() time.Duration
}

type queueReport struct {
	queue.Status
	InterDelayMS int64 `json:"inter_delay_ms"`
}

// Register mounts /healthz, /metrics and /queue on mux.
func Register(mux *http.ServeMux, q QueueStatus) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "OK")
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		report := queueReport{Status: q.Status(), InterDelayMS: q.InterDelay().Milliseconds()}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	})
}

// StartHealthServer listens on addr and serves handler in the background.
func StartHealthServer(addr string, handler http.Handler) (*http.Server, net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("health: listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, ln, nil
}
