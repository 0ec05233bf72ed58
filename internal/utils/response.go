package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-attendance/internal/apperr"
)

type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse renders err as a structured rejection. Only the apperr
// message reaches the caller; causes stay in the logs.
func ErrorResponse(err error) APIResponse {
	resp := APIResponse{
		Success:   false,
		Message:   "Internal server error",
		Code:      string(apperr.CodeInternal),
		Timestamp: time.Now(),
	}
	if e, ok := apperr.As(err); ok {
		resp.Message = e.Message
		resp.Code = string(e.Code)
		resp.Status = e.Status
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), ErrorResponse(err))
}
