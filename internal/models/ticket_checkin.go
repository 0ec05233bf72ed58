package models

import (
	"time"

	"ms-attendance/internal/apperr"
)

// Transition is the outcome of asking a ticket to change state. A rejected
// transition is not an error: Reason says why and State is left untouched.
type Transition struct {
	Applied bool
	Reason  apperr.Code
	State   CheckInState
}

// CheckIn moves a valid ticket that is not currently inside into checked-in.
func (t *Ticket) CheckIn(actor string, now time.Time) Transition {
	if !t.IsValid {
		return Transition{Reason: apperr.CodeInvalidTicket, State: t.State()}
	}
	if t.State() == CheckInStateCheckedIn {
		return Transition{Reason: apperr.CodeAlreadyCheckedIn, State: t.State()}
	}

	at := now
	t.CheckInStatus.State = CheckInStateCheckedIn
	t.CheckInStatus.LastCheckedInAt = &at
	t.CheckInStatus.CheckInCount++
	t.CheckInStatus.History = append(t.CheckInStatus.History, CheckInHistoryEntry{
		Action:    ActionCheckIn,
		Timestamp: now,
		ScannedBy: actor,
	})

	return Transition{Applied: true, State: CheckInStateCheckedIn}
}

// CheckOut is terminal: the ticket is invalid from here on.
func (t *Ticket) CheckOut(actor string, now time.Time) Transition {
	if t.State() != CheckInStateCheckedIn {
		return Transition{Reason: apperr.CodeNotCheckedIn, State: t.State()}
	}

	at := now
	t.CheckInStatus.State = CheckInStateCheckedOut
	t.CheckInStatus.LastCheckedOutAt = &at
	t.IsValid = false
	t.CheckInStatus.History = append(t.CheckInStatus.History, CheckInHistoryEntry{
		Action:    ActionCheckOut,
		Timestamp: now,
		ScannedBy: actor,
	})

	return Transition{Applied: true, State: CheckInStateCheckedOut}
}

// Invalidate marks a still-valid ticket invalid. Already-invalid tickets keep
// their original reason and false is returned.
func (t *Ticket) Invalidate(reason string) bool {
	if !t.IsValid {
		return false
	}
	t.IsValid = false
	t.InvalidationReason = reason
	return true
}

func (t *Ticket) CanCheckIn() bool {
	return t.IsValid && t.State() != CheckInStateCheckedIn
}
