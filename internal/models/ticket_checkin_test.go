package models

import (
	"testing"
	"time"

	"ms-attendance/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

func validTicket() *Ticket {
	return &Ticket{
		ID:            "ticket-1",
		TicketNumber:  "TKT26100001",
		EventID:       "event-1",
		IsValid:       true,
		CheckInStatus: CheckInStatus{State: CheckInStateNotCheckedIn},
	}
}

func TestCheckInAppliesOnce(t *testing.T) {
	ticket := validTicket()

	tr := ticket.CheckIn("staff-1", t0)
	require.True(t, tr.Applied)
	assert.Equal(t, CheckInStateCheckedIn, ticket.State())
	assert.Equal(t, 1, ticket.CheckInStatus.CheckInCount)
	require.NotNil(t, ticket.CheckInStatus.LastCheckedInAt)
	assert.Equal(t, t0, *ticket.CheckInStatus.LastCheckedInAt)

	again := ticket.CheckIn("staff-2", t0.Add(time.Minute))
	assert.False(t, again.Applied)
	assert.Equal(t, apperr.CodeAlreadyCheckedIn, again.Reason)
	assert.Equal(t, CheckInStateCheckedIn, again.State)
	assert.Equal(t, 1, ticket.CheckInStatus.CheckInCount)
	assert.Len(t, ticket.CheckInStatus.History, 1)
}

func TestCheckOutIsTerminal(t *testing.T) {
	ticket := validTicket()
	require.True(t, ticket.CheckIn("staff-1", t0).Applied)

	tr := ticket.CheckOut("staff-1", t0.Add(time.Hour))
	require.True(t, tr.Applied)
	assert.False(t, ticket.IsValid)
	assert.Equal(t, CheckInStateCheckedOut, ticket.State())
	require.NotNil(t, ticket.CheckInStatus.LastCheckedOutAt)

	retry := ticket.CheckIn("staff-1", t0.Add(2*time.Hour))
	assert.False(t, retry.Applied)
	assert.Equal(t, apperr.CodeInvalidTicket, retry.Reason)

	out := ticket.CheckOut("staff-1", t0.Add(2*time.Hour))
	assert.False(t, out.Applied)
	assert.Equal(t, apperr.CodeNotCheckedIn, out.Reason)

	require.Len(t, ticket.CheckInStatus.History, 2)
	assert.Equal(t, ActionCheckIn, ticket.CheckInStatus.History[0].Action)
	assert.Equal(t, ActionCheckOut, ticket.CheckInStatus.History[1].Action)
}

func TestCheckOutRequiresCheckedIn(t *testing.T) {
	ticket := validTicket()

	tr := ticket.CheckOut("staff-1", t0)
	assert.False(t, tr.Applied)
	assert.Equal(t, apperr.CodeNotCheckedIn, tr.Reason)
	assert.True(t, ticket.IsValid)
	assert.Empty(t, ticket.CheckInStatus.History)
}

func TestInvalidateKeepsFirstReason(t *testing.T) {
	ticket := validTicket()

	assert.True(t, ticket.Invalidate("Event cancelled"))
	assert.False(t, ticket.Invalidate("Event past"))
	assert.Equal(t, "Event cancelled", ticket.InvalidationReason)
	assert.False(t, ticket.CanCheckIn())
}

func TestEmptyStateIsNotCheckedIn(t *testing.T) {
	ticket := &Ticket{IsValid: true}
	assert.Equal(t, CheckInStateNotCheckedIn, ticket.State())
	assert.True(t, ticket.CanCheckIn())
}
