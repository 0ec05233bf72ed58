package db

import (
	"context"
	"time"

	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

// CreateSchema creates the tables from the models. Production databases are
// migrated with golang-migrate; this is for tests and local SQLite runs.
func CreateSchema(ctx context.Context, d *DB) error {
	for _, model := range []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.AttendeeRecord)(nil),
		(*models.AttendanceHistoryEntry)(nil),
	} {
		if _, err := d.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = utils.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(user).Exec(ctx)
	return classify(err)
}

// CreateEvent inserts an event with an empty attendance record.
func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = utils.NewID()
	}
	if event.Status == "" {
		event.Status = models.EventStatusUpcoming
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	event.Attendance.CurrentCount = 0
	event.Attendance.TotalCheckins = 0
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return classify(err)
}

// CreateTicket inserts a freshly issued, valid ticket.
func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	if ticket.ID == "" {
		ticket.ID = utils.NewID()
	}
	if ticket.TicketNumber == "" {
		ticket.TicketNumber = utils.GenerateTicketNumber(now)
	}
	if ticket.CheckInStatus.State == "" {
		ticket.CheckInStatus.State = models.CheckInStateNotCheckedIn
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return classify(err)
}
