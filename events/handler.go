// Package events receives complaint lifecycle events from the web application and
// turns them into queued notifications.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"complaintmail/notify"
)

const maxBodyBytes = 1 << 20

// ComplaintNotifier is implemented by *notify.Notifier.
type ComplaintNotifier interface {
	ComplaintCreated(ctx context.Context, c notify.Complaint) error
	StatusChanged(ctx context.Context, c notify.Complaint) error
}

type handler struct {
	notifier ComplaintNotifier
	log      zerolog.Logger
}

// Register mounts the complaint event endpoints on mux.
func Register(mux *http.ServeMux, n ComplaintNotifier, log zerolog.Logger) {
	h := &handler{notifier: n, log: log}
	mux.HandleFunc("/events/complaint-created", h.created)
	mux.HandleFunc("/events/complaint-status", h.statusChanged)
}

func (h *handler) created(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r)
	if !ok {
		return
	}
	if c.Description == "" {
		writeError(w, http.StatusBadRequest, "Title and description are required")
		return
	}
	if err := h.notifier.ComplaintCreated(context.WithoutCancel(r.Context()), c); err != nil {
		h.log.Error().Err(err).Str("complaint", c.ID).Msg("admin notification failed")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Notification queued"})
}

func (h *handler) statusChanged(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decode(w, r)
	if !ok {
		return
	}
	if !notify.ValidStatus(c.Status) {
		writeError(w, http.StatusBadRequest, "Unknown status")
		return
	}
	if err := h.notifier.StatusChanged(context.WithoutCancel(r.Context()), c); err != nil {
		h.log.Error().Err(err).Str("complaint", c.ID).Msg("status update notification failed")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Notification queued"})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (notify.Complaint, bool) {
	var c notify.Complaint
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return c, false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return c, false
	}
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	if c.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return c, false
	}
	return c, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
