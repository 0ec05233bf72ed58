// Package testutil holds fixtures shared by package tests: an in-memory
// SQLite store with the full schema, and seeding helpers.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	attendancedb "ms-attendance/internal/attendance/db"
	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewDB opens a private in-memory database. A single connection keeps the
// database alive for the test and serializes transactions the way row locks
// would on Postgres.
func NewDB(t testing.TB) *attendancedb.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	store := attendancedb.New(bunDB, 5*time.Second)
	if err := attendancedb.CreateSchema(context.Background(), store); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return store
}

var seq int64

func next() int64 { return atomic.AddInt64(&seq, 1) }

func SeedUser(t testing.TB, store *attendancedb.DB, name, role string) *models.User {
	t.Helper()
	n := next()
	user := &models.User{
		ID:    fmt.Sprintf("user-%d", n),
		Name:  name,
		Email: fmt.Sprintf("user%d@example.com", n),
		Role:  role,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedEvent inserts an event owned by organizerID spanning [start, end].
func SeedEvent(t testing.TB, store *attendancedb.DB, organizerID string, start, end time.Time, status models.EventStatus) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:          fmt.Sprintf("event-%d", next()),
		Title:       "Launch Night",
		OrganizerID: organizerID,
		StartDate:   start.UTC(),
		EndDate:     end.UTC(),
		Status:      status,
	}
	if err := store.CreateEvent(context.Background(), event); err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
	return event
}

func SeedTicket(t testing.TB, store *attendancedb.DB, eventID, holderID string) *models.Ticket {
	t.Helper()
	n := next()
	ticket := &models.Ticket{
		ID:           fmt.Sprintf("ticket-%d", n),
		TicketNumber: fmt.Sprintf("TKT2610%06d", n),
		UserID:       holderID,
		EventID:      eventID,
		IsValid:      true,
	}
	if err := store.CreateTicket(context.Background(), ticket); err != nil {
		t.Fatalf("Failed to seed ticket: %v", err)
	}
	return ticket
}

func MustTicket(t testing.TB, store *attendancedb.DB, ticketID string) *models.Ticket {
	t.Helper()
	ticket, err := store.GetTicket(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("Failed to load ticket %s: %v", ticketID, err)
	}
	return ticket
}

func MustEvent(t testing.TB, store *attendancedb.DB, eventID string) *models.Event {
	t.Helper()
	event, err := store.GetEvent(context.Background(), eventID)
	if err != nil {
		t.Fatalf("Failed to load event %s: %v", eventID, err)
	}
	return event
}

// Attendees loads the full attendee map of an event.
func Attendees(t testing.TB, store *attendancedb.DB, eventID string) map[string]*models.AttendeeRecord {
	t.Helper()
	var records []*models.AttendeeRecord
	err := store.Bun.NewSelect().Model(&records).Where("event_id = ?", eventID).Scan(context.Background())
	if err != nil {
		t.Fatalf("Failed to load attendees: %v", err)
	}
	out := make(map[string]*models.AttendeeRecord, len(records))
	for _, r := range records {
		out[r.TicketID] = r
	}
	return out
}
