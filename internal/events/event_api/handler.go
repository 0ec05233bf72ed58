package event_api

import (
	"fmt"
	"net/http"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/events"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Lifecycle *events.Service
	Logger    *logger.Logger
}

func NewHandler(lifecycle *events.Service, l *logger.Logger) *Handler {
	return &Handler{Lifecycle: lifecycle, Logger: l}
}

// Routes mounts the event endpoints. Reads need any authenticated caller;
// status changes need an organizer, and the service checks ownership.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authn)

	r.Get("/{eventId}", h.GetEvent)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleOrganizer))
		r.Patch("/{eventId}/status", h.UpdateStatus)
		r.Post("/{eventId}/status/automatic", h.ResumeAutomatic)
	})
	return r
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Lifecycle.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var update events.StatusUpdate
	if err := utils.DecodeJSON(r, &update); err != nil {
		h.fail(w, r, err)
		return
	}

	event, err := h.Lifecycle.SetStatus(r.Context(), chi.URLParam(r, "eventId"), auth.UserID(r.Context()), update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) ResumeAutomatic(w http.ResponseWriter, r *http.Request) {
	event, err := h.Lifecycle.ResumeAutomatic(r.Context(), chi.URLParam(r, "eventId"), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindTransient:
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	case apperr.KindForbidden:
		h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("%s %s by %s", r.Method, r.URL.Path, auth.UserID(r.Context())))
	}
	utils.WriteError(w, err)
}
