package attendance

import (
	"ms-attendance/internal/apperr"
	"ms-attendance/internal/models"
)

// ValidateCheckIn runs the check-in preconditions in order; the first
// failing one wins.
func ValidateCheckIn(t *models.Ticket, e *models.Event) error {
	if t == nil {
		return apperr.NotFound("Ticket not found")
	}
	if !t.IsValid {
		return apperr.InvalidTicket("Ticket is no longer valid")
	}
	if e == nil {
		return apperr.NotFound("Event not found")
	}
	if e.Status != models.EventStatusOngoing {
		return apperr.EventNotOngoing(string(e.Status))
	}
	if t.State() == models.CheckInStateCheckedIn {
		return apperr.AlreadyCheckedIn(string(t.State()))
	}
	return nil
}

func ValidateCheckOut(t *models.Ticket) error {
	if t == nil {
		return apperr.NotFound("Ticket not found")
	}
	if t.State() != models.CheckInStateCheckedIn {
		return apperr.NotCheckedIn()
	}
	return nil
}

// ValidateScan checks a scanned ticket without deciding its check-in state.
// A ticket number that does not match the id is reported as not found.
func ValidateScan(t *models.Ticket, ticketNumber string, e *models.Event) error {
	if t == nil || (ticketNumber != "" && t.TicketNumber != ticketNumber) {
		return apperr.NotFound("Invalid ticket")
	}
	if !t.IsValid {
		return apperr.InvalidTicket("Ticket is no longer valid")
	}
	if e == nil {
		return apperr.NotFound("Event not found")
	}
	if e.Status != models.EventStatusOngoing {
		return apperr.EventNotOngoing(string(e.Status))
	}
	return nil
}

// rejection converts a refused state-machine transition into its error.
func rejection(tr models.Transition) error {
	switch tr.Reason {
	case apperr.CodeAlreadyCheckedIn:
		return apperr.AlreadyCheckedIn(string(tr.State))
	case apperr.CodeNotCheckedIn:
		return apperr.NotCheckedIn()
	case apperr.CodeInvalidTicket:
		return apperr.InvalidTicket("Ticket is no longer valid")
	default:
		return apperr.Internal(nil)
	}
}
