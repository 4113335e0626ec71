package events

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaintmail/notify"
)

type recordingNotifier struct {
	created []notify.Complaint
	status  []notify.Complaint
	err     error
}

func (r *recordingNotifier) ComplaintCreated(ctx context.Context, c notify.Complaint) error {
	r.created = append(r.created, c)
	return r.err
}

func (r *recordingNotifier) StatusChanged(ctx context.Context, c notify.Complaint) error {
	r.status = append(r.status, c)
	return r.err
}

func serve(t *testing.T, n ComplaintNotifier, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	Register(mux, n, zerolog.Nop())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestComplaintCreatedAccepted(t *testing.T) {
	n := &recordingNotifier{}
	rec := serve(t, n, http.MethodPost, "/events/complaint-created",
		`{"id":"c1","title":" Broken heater ","description":"cold","userEmail":"user@x.com"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, n.created, 1)
	assert.Equal(t, "Broken heater", n.created[0].Title)
	assert.Equal(t, "user@x.com", n.created[0].UserEmail)
}

func TestNotifierFailureStillAccepted(t *testing.T) {
	n := &recordingNotifier{err: errors.New("directory unavailable")}
	rec := serve(t, n, http.MethodPost, "/events/complaint-status",
		`{"title":"Leak","status":"Resolved","userEmail":"user@x.com"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, n.status, 1)
}

func TestEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "/events/complaint-created", "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, "/events/complaint-created", "{", http.StatusBadRequest},
		{"missing title", http.MethodPost, "/events/complaint-created", `{"description":"x"}`, http.StatusBadRequest},
		{"missing description", http.MethodPost, "/events/complaint-created", `{"title":"x"}`, http.StatusBadRequest},
		{"unknown status", http.MethodPost, "/events/complaint-status", `{"title":"x","status":"Closed"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := &recordingNotifier{}
			rec := serve(t, n, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.Empty(t, n.created)
			assert.Empty(t, n.status)
		})
	}
}
