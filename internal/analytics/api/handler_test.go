package analytics_api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-attendance/internal/analytics"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func as(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), userID, role)))
		})
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	store := testutil.NewDB(t)
	owner := testutil.SeedUser(t, store, "Olu Organizer", "organizer")
	rival := testutil.SeedUser(t, store, "Rae Rival", "organizer")
	holder := testutil.SeedUser(t, store, "Ada Holder", "user")
	now := time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)
	event := testutil.SeedEvent(t, store, owner.ID, now, now.Add(3*time.Hour), models.EventStatusOngoing)
	other := testutil.SeedEvent(t, store, rival.ID, now, now.Add(3*time.Hour), models.EventStatusOngoing)
	testutil.SeedTicket(t, store, event.ID, holder.ID)

	h := NewHandler(analytics.NewService(store.Bun), logger.Discard())
	router := func(userID, role string) http.Handler {
		r := chi.NewRouter()
		r.Mount("/api/analytics", h.Routes(as(userID, role)))
		return r
	}

	do := func(handler http.Handler, method, path string, body interface{}) (int, map[string]interface{}) {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		return rec.Code, decoded
	}

	t.Run("owner sees event analytics", func(t *testing.T) {
		status, body := do(router(owner.ID, auth.RoleOrganizer), http.MethodGet, "/api/analytics/events/"+event.ID, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, event.ID, body["eventId"])
		assert.EqualValues(t, 1, body["tickets"].(map[string]interface{})["issued"])
		assert.NotContains(t, body, "OrganizerID")
	})

	t.Run("other organizer is forbidden", func(t *testing.T) {
		status, body := do(router(rival.ID, auth.RoleOrganizer), http.MethodGet, "/api/analytics/events/"+event.ID, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "FORBIDDEN", body["code"])
	})

	t.Run("admin sees any event", func(t *testing.T) {
		status, _ := do(router("root", auth.RoleAdmin), http.MethodGet, "/api/analytics/events/"+other.ID, nil)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("batch", func(t *testing.T) {
		status, body := do(router(owner.ID, auth.RoleOrganizer), http.MethodPost, "/api/analytics/events/batch",
			map[string][]string{"eventIds": {event.ID}})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 1, body["analytics"].(map[string]interface{})["tickets"].(map[string]interface{})["issued"])
	})

	t.Run("batch rejections", func(t *testing.T) {
		tests := []struct {
			name   string
			ids    []string
			status int
			code   string
		}{
			{"empty", []string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
			{"unknown event", []string{event.ID, "missing"}, http.StatusNotFound, "NOT_FOUND"},
			{"foreign event", []string{event.ID, other.ID}, http.StatusForbidden, "FORBIDDEN"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				status, body := do(router(owner.ID, auth.RoleOrganizer), http.MethodPost, "/api/analytics/events/batch",
					map[string][]string{"eventIds": tt.ids})
				assert.Equal(t, tt.status, status)
				assert.Equal(t, tt.code, body["code"])
			})
		}
	})

	t.Run("attendee role", func(t *testing.T) {
		status, _ := do(router(holder.ID, "user"), http.MethodGet, "/api/analytics/events/"+event.ID, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})
}
