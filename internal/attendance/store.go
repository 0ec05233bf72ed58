package attendance

import (
	"context"
	"time"

	"ms-attendance/internal/models"
)

// Tx is the storage surface available inside one atomic unit of work. Update
// methods compare-and-swap on the row version and fail with
// apperr.ErrWriteConflict when another writer got there first.
type Tx interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	// LoadAttendees fills e.Attendance.Attendees with the given tickets'
	// entries, or with the whole map when no ids are given.
	LoadAttendees(ctx context.Context, e *models.Event, ticketIDs ...string) error
	UpdateTicket(ctx context.Context, t *models.Ticket, now time.Time) error
	// UpdateEvent also writes touched attendee entries and pending history.
	UpdateEvent(ctx context.Context, e *models.Event, now time.Time) error
	ListCheckedInTickets(ctx context.Context, eventID string) ([]*models.Ticket, error)
	// InvalidateValidTickets bulk-invalidates every still-valid ticket of the
	// event and returns how many rows changed.
	InvalidateValidTickets(ctx context.Context, eventID, reason string, now time.Time) (int, error)
}

type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEventsForStatusSweep(ctx context.Context) ([]*models.Event, error)
	ListOngoingEventIDs(ctx context.Context) ([]string, error)
	ListCheckedInAttendees(ctx context.Context, eventID string) ([]models.CheckedInAttendee, error)
	ListAttendanceHistory(ctx context.Context, eventID string) ([]models.HistoryView, error)
}
