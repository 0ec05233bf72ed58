package event_api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/events"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func identity(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), userID, role)))
		})
	}
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec.Code, decoded
}

func TestEventStatusEndpoints(t *testing.T) {
	store := testutil.NewDB(t)
	clock := clockwork.NewFakeClockAt(t0)
	lifecycle := events.NewService(store, events.Options{Clock: clock, Logger: logger.Discard()})
	h := NewHandler(lifecycle, logger.Discard())

	organizer := testutil.SeedUser(t, store, "Olu Organizer", "organizer")
	rival := testutil.SeedUser(t, store, "Rae Rival", "organizer")
	holder := testutil.SeedUser(t, store, "Ada Holder", "user")
	event := testutil.SeedEvent(t, store, organizer.ID, t0.Add(-time.Hour), t0.Add(time.Hour), models.EventStatusOngoing)
	ticket := testutil.SeedTicket(t, store, event.ID, holder.ID)

	router := func(userID, role string) http.Handler {
		r := chi.NewRouter()
		r.Mount("/api/events", h.Routes(identity(userID, role)))
		return r
	}
	owner := router(organizer.ID, auth.RoleOrganizer)
	path := "/api/events/" + event.ID

	status, body := call(t, router(holder.ID, "user"), http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ongoing", body["status"])

	status, body = call(t, router(holder.ID, "user"), http.MethodPatch, path+"/status", `{"status":"cancelled","reason":"x"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = call(t, router(rival.ID, auth.RoleOrganizer), http.MethodPatch, path+"/status", `{"status":"cancelled","reason":"x"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = call(t, owner, http.MethodPatch, path+"/status", `{"status":"paused"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "Invalid or missing status", body["message"])

	status, body = call(t, owner, http.MethodPatch, path+"/status", `{"status":"ongoing","manualStatusControl":true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["manualStatusControl"])

	clock.Advance(2 * time.Hour)

	status, body = call(t, owner, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ongoing", body["status"], "manual control holds the status past the end date")

	status, body = call(t, owner, http.MethodPost, path+"/status/automatic", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "past", body["status"])
	assert.Equal(t, false, body["manualStatusControl"])

	assert.Equal(t, "Event past", testutil.MustTicket(t, store, ticket.ID).InvalidationReason)

	status, body = call(t, owner, http.MethodGet, "/api/events/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
