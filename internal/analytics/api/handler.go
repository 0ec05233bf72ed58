package analytics_api

import (
	"fmt"
	"net/http"

	"ms-attendance/internal/analytics"
	"ms-attendance/internal/apperr"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles attendance analytics endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, l *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: l}
}

// Routes mounts the analytics endpoints. Organizers only see their own
// events; admins see everything.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authn)
	r.Use(auth.RequireRole(auth.RoleOrganizer, auth.RoleAdmin))

	r.Get("/events/{eventId}", h.GetEventAnalytics)
	r.Post("/events/batch", h.GetBatchEventAnalytics)
	return r
}

type batchRequest struct {
	EventIDs []string `json:"eventIds" validate:"required,min=1,max=100,dive,required"`
}

type batchResponse struct {
	Success   bool                                `json:"success"`
	Analytics *analytics.BatchAttendanceAnalytics `json:"analytics"`
}

func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Attendance analytics requested for event %s", eventID))

	result, err := h.Service.GetEventAnalytics(r.Context(), eventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !h.canSee(r, result.OrganizerID) {
		h.fail(w, r, apperr.Forbidden("You do not have permission to view analytics for this event"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// GetBatchEventAnalytics aggregates over the requested events. Every event
// must exist and belong to the caller.
func (h *Handler) GetBatchEventAnalytics(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	owners, err := h.Service.OrganizerOf(r.Context(), req.EventIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	for _, id := range req.EventIDs {
		owner, ok := owners[id]
		if !ok {
			h.fail(w, r, apperr.NotFound(fmt.Sprintf("Event %s not found", id)))
			return
		}
		if !h.canSee(r, owner) {
			h.fail(w, r, apperr.Forbidden("You do not have permission to view analytics for one or more events"))
			return
		}
	}

	result, err := h.Service.GetBatchEventAnalytics(r.Context(), req.EventIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, batchResponse{Success: true, Analytics: result})
}

func (h *Handler) canSee(r *http.Request, organizerID string) bool {
	return auth.HasRole(r.Context(), auth.RoleAdmin) || auth.UserID(r.Context()) == organizerID
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindTransient:
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	case apperr.KindForbidden:
		h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("%s %s by %s", r.Method, r.URL.Path, auth.UserID(r.Context())))
	}
	utils.WriteError(w, err)
}
