package attendance_api

import (
	"fmt"
	"net/http"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/attendance"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/qr"
	"ms-attendance/internal/sse"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *attendance.Service
	Emitter *sse.AttendanceEmitter
	QR      *qr.Codec
	Logger  *logger.Logger
}

func NewHandler(service *attendance.Service, emitter *sse.AttendanceEmitter, codec *qr.Codec, l *logger.Logger) *Handler {
	return &Handler{Service: service, Emitter: emitter, QR: codec, Logger: l}
}

// Routes mounts the attendance endpoints. Every route needs an authenticated
// organizer or admin.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authn)
	r.Use(auth.RequireRole(auth.RoleOrganizer, auth.RoleAdmin))

	r.Post("/scan", h.Scan)
	r.Post("/check-in", h.CheckIn)
	r.Post("/check-out", h.CheckOut)
	r.Get("/event/{eventId}", h.GetEventAttendance)
	r.Get("/event/{eventId}/attendees", h.GetAttendees)
	r.Get("/event/{eventId}/history", h.GetHistory)
	r.Get("/event/{eventId}/stream", h.StreamAttendance)
	r.Get("/tickets/{ticketId}/qr", h.TicketQR)
	return r
}

type scanRequest struct {
	TicketID     string `json:"ticketId" validate:"required_without=EncryptedQR"`
	TicketNumber string `json:"ticketNumber" validate:"required_without=EncryptedQR"`
	EncryptedQR  string `json:"encryptedQr"`
}

type ticketRequest struct {
	TicketID string `json:"ticketId" validate:"required"`
}

type scanResponse struct {
	Success    bool                `json:"success"`
	Ticket     *models.Ticket      `json:"ticket"`
	Status     models.CheckInState `json:"status"`
	CanCheckIn bool                `json:"canCheckIn"`
}

type transitionResponse struct {
	Success    bool                      `json:"success"`
	Message    string                    `json:"message"`
	Ticket     *models.Ticket            `json:"ticket"`
	Status     models.CheckInState       `json:"status"`
	Attendance attendance.AttendanceView `json:"attendance"`
}

type historyResponse struct {
	Success bool                 `json:"success"`
	History []models.HistoryView `json:"history"`
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.Scan(r.Context(), attendance.ScanRequest{
		TicketID:     req.TicketID,
		TicketNumber: req.TicketNumber,
		EncryptedQR:  req.EncryptedQR,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, scanResponse{
		Success:    true,
		Ticket:     res.Ticket,
		Status:     res.Status,
		CanCheckIn: res.CanCheckIn,
	})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.CheckIn(r.Context(), req.TicketID, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeTransition(w, "Check-in successful", res)
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.CheckOut(r.Context(), req.TicketID, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeTransition(w, "Check-out successful. Ticket has been invalidated.", res)
}

func (h *Handler) GetEventAttendance(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Service.GetEventAttendance(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) GetAttendees(w http.ResponseWriter, r *http.Request) {
	attendees, err := h.Service.GetCheckedInAttendees(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, attendees)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Service.GetAttendanceHistory(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, historyResponse{Success: true, History: history})
}

// TicketQR renders the ticket's sealed scan payload as a PNG.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	if h.QR == nil {
		h.fail(w, r, apperr.NotFound("QR codes are not enabled"))
		return
	}

	ticket, err := h.Service.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	png, err := h.QR.PNG(qr.Payload{
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		EventID:      ticket.EventID,
	}, 256)
	if err != nil {
		h.fail(w, r, apperr.Internal(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) writeTransition(w http.ResponseWriter, message string, res *attendance.TransitionResult) {
	utils.WriteJSON(w, http.StatusOK, transitionResponse{
		Success:    true,
		Message:    message,
		Ticket:     res.Ticket,
		Status:     res.Status,
		Attendance: res.Attendance,
	})
}

// decode reads and validates a JSON body, writing the 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.DecodeJSON(r, v); err != nil {
		utils.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s %s rejected: %v", r.Method, r.URL.Path, err))
	}
	utils.WriteError(w, err)
}
