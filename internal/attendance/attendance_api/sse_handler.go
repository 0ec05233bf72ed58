package attendance_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-attendance/internal/apperr"

	"github.com/go-chi/chi/v5"
)

// StreamAttendance pushes the event's attendance counters to the client
// whenever a check-in, check-out or reconciliation changes them.
func (h *Handler) StreamAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, apperr.Internal(fmt.Errorf("streaming unsupported")))
		return
	}

	// Current counters first, so a fresh dashboard is not blank until the
	// next scan. This also rejects unknown events before the stream opens.
	current, err := h.Service.GetEventAttendance(r.Context(), eventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	updates := h.Emitter.Subscribe(ctx, eventID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", eventID)
	h.writeSnapshot(w, current)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to attendance stream for event: %s", eventID))

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			h.writeSnapshot(w, snapshot)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from attendance stream for: %s", eventID))
			return
		}
	}
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, snapshot interface{}) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize attendance snapshot: %v", err))
		return
	}
	fmt.Fprintf(w, "event: attendance\ndata: %s\n\n", data)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
