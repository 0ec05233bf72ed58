package attendance

import (
	"testing"
	"time"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateCheckInOrder(t *testing.T) {
	ongoing := &models.Event{ID: "event-1", Status: models.EventStatusOngoing}
	past := &models.Event{ID: "event-1", Status: models.EventStatusPast}

	valid := func() *models.Ticket {
		return &models.Ticket{ID: "ticket-1", EventID: "event-1", IsValid: true}
	}
	inside := valid()
	inside.CheckInStatus.State = models.CheckInStateCheckedIn
	revoked := valid()
	revoked.IsValid = false

	tests := []struct {
		name   string
		ticket *models.Ticket
		event  *models.Event
		code   apperr.Code
	}{
		{"missing ticket", nil, ongoing, apperr.CodeNotFound},
		{"invalid ticket wins over event status", revoked, past, apperr.CodeInvalidTicket},
		{"missing event", valid(), nil, apperr.CodeNotFound},
		{"event not ongoing wins over state", inside, past, apperr.CodeEventNotOngoing},
		{"already inside", inside, ongoing, apperr.CodeAlreadyCheckedIn},
		{"ok", valid(), ongoing, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCheckIn(tt.ticket, tt.event)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestValidateScanTreatsNumberMismatchAsUnknown(t *testing.T) {
	ticket := &models.Ticket{ID: "ticket-1", TicketNumber: "TKT26100001", IsValid: true}
	event := &models.Event{Status: models.EventStatusOngoing}

	err := ValidateScan(ticket, "TKT26109999", event)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.EqualError(t, err, "NOT_FOUND: Invalid ticket")

	assert.NoError(t, ValidateScan(ticket, "TKT26100001", event))

	event.Status = models.EventStatusCancelled
	err = ValidateScan(ticket, "TKT26100001", event)
	e, ok := apperr.As(err)
	assert.True(t, ok)
	assert.Equal(t, "cancelled", e.Status)
}

func TestValidateCheckOutNeedsCheckedIn(t *testing.T) {
	ticket := &models.Ticket{ID: "ticket-1", IsValid: true}
	assert.Equal(t, apperr.CodeNotCheckedIn, apperr.CodeOf(ValidateCheckOut(ticket)))

	ticket.CheckInStatus.State = models.CheckInStateCheckedIn
	assert.NoError(t, ValidateCheckOut(ticket))
}

func TestAlreadyCheckedInCarriesTicketState(t *testing.T) {
	inside := &models.Ticket{ID: "ticket-1", IsValid: true}
	inside.CheckInStatus.State = models.CheckInStateCheckedIn
	event := &models.Event{Status: models.EventStatusOngoing}

	e, ok := apperr.As(ValidateCheckIn(inside, event))
	assert.True(t, ok)
	assert.Equal(t, "checked-in", e.Status)

	e, ok = apperr.As(rejection(inside.CheckIn("staff-1", time.Now())))
	assert.True(t, ok)
	assert.Equal(t, apperr.CodeAlreadyCheckedIn, e.Code)
	assert.Equal(t, "checked-in", e.Status)
}
