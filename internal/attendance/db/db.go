package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/attendance"
	"ms-attendance/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
	// TxTimeout bounds each transaction attempt; zero means no extra bound.
	TxTimeout time.Duration
}

func New(bunDB *bun.DB, txTimeout time.Duration) *DB {
	return &DB{Bun: bunDB, TxTimeout: txTimeout}
}

var _ attendance.Store = (*DB)(nil)

// RunInTx runs fn inside a single database transaction. Anything fn returns
// rolls the transaction back; storage failures are classified into apperr
// kinds so callers can decide whether to retry.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx attendance.Tx) error) error {
	if d.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.TxTimeout)
		defer cancel()
	}

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Tx{tx: tx})
	})
	return classify(err)
}

func (d *DB) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return getTicket(ctx, d.Bun, ticketID)
}

func (d *DB) GetTicketByNumber(ctx context.Context, ticketNumber string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := d.Bun.NewSelect().Model(ticket).Where("ticket_number = ?", ticketNumber).Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Ticket not found")
	}
	return ticket, nil
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return getEvent(ctx, d.Bun, eventID)
}

// ListEventsForStatusSweep returns automatically controlled events whose
// status can still move with the clock.
func (d *DB) ListEventsForStatusSweep(ctx context.Context) ([]*models.Event, error) {
	var events []*models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Where("manual_status_control = ?", false).
		Where("status IN (?)", bun.In([]models.EventStatus{models.EventStatusUpcoming, models.EventStatusOngoing})).
		OrderExpr("start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func (d *DB) ListOngoingEventIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("id").
		Where("status = ?", models.EventStatusOngoing).
		OrderExpr("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (d *DB) ListCheckedInAttendees(ctx context.Context, eventID string) ([]models.CheckedInAttendee, error) {
	var rows []models.CheckedInAttendee
	err := d.Bun.NewSelect().
		TableExpr("tickets AS t").
		ColumnExpr("t.id AS ticket_id").
		ColumnExpr("t.ticket_number AS ticket_number").
		ColumnExpr("t.check_in_last_checked_in_at AS checked_in_at").
		ColumnExpr("t.check_in_count AS check_in_count").
		ColumnExpr("t.user_id AS holder_id").
		ColumnExpr("u.name AS holder_name").
		ColumnExpr("u.email AS holder_email").
		ColumnExpr("ea.scanned_by AS scanned_by").
		Join("LEFT JOIN users AS u ON u.id = t.user_id").
		Join("LEFT JOIN event_attendees AS ea ON ea.event_id = t.event_id AND ea.ticket_id = t.id").
		Where("t.event_id = ?", eventID).
		Where("t.check_in_state = ?", models.CheckInStateCheckedIn).
		OrderExpr("t.check_in_last_checked_in_at ASC, t.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (d *DB) ListAttendanceHistory(ctx context.Context, eventID string) ([]models.HistoryView, error) {
	var rows []models.HistoryView
	err := d.Bun.NewSelect().
		TableExpr("attendance_history AS ah").
		ColumnExpr("ah.id AS id").
		ColumnExpr("ah.ticket_id AS ticket_id").
		ColumnExpr("t.ticket_number AS ticket_number").
		ColumnExpr("ah.action AS action").
		ColumnExpr("ah.occurred_at AS occurred_at").
		ColumnExpr("u.name AS holder_name").
		ColumnExpr("u.email AS holder_email").
		ColumnExpr("ah.scanned_by AS scanned_by").
		ColumnExpr("s.name AS scanner_name").
		Join("LEFT JOIN tickets AS t ON t.id = ah.ticket_id").
		Join("LEFT JOIN users AS u ON u.id = t.user_id").
		Join("LEFT JOIN users AS s ON s.id = ah.scanned_by").
		Where("ah.event_id = ?", eventID).
		OrderExpr("ah.occurred_at ASC, ah.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, classify(err)
	}
	for i := range rows {
		if rows[i].ScannedBy == "" {
			rows[i].ScannedBy = rows[i].ScannedByID
		}
	}
	return rows, nil
}

// Tx is the transactional view handed to attendance.Store.RunInTx callbacks.
type Tx struct {
	tx bun.Tx
}

var _ attendance.Tx = (*Tx)(nil)

func (t *Tx) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return getTicket(ctx, t.tx, ticketID)
}

func (t *Tx) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return getEvent(ctx, t.tx, eventID)
}

func (t *Tx) LoadAttendees(ctx context.Context, e *models.Event, ticketIDs ...string) error {
	var records []*models.AttendeeRecord
	q := t.tx.NewSelect().Model(&records).Where("event_id = ?", e.ID)
	if len(ticketIDs) > 0 {
		q = q.Where("ticket_id IN (?)", bun.In(ticketIDs))
	}
	if err := q.Scan(ctx); err != nil {
		return classify(err)
	}
	e.Attendance.Load(records...)
	return nil
}

// UpdateTicket writes the mutable ticket columns if the row still carries
// the version that was read.
func (t *Tx) UpdateTicket(ctx context.Context, ticket *models.Ticket, now time.Time) error {
	prev := ticket.Version
	ticket.Version = prev + 1
	ticket.UpdatedAt = now

	res, err := t.tx.NewUpdate().
		Model(ticket).
		Column("is_valid", "invalidation_reason",
			"check_in_state", "check_in_last_checked_in_at", "check_in_last_checked_out_at",
			"check_in_count", "check_in_history", "version", "updated_at").
		WherePK().
		Where("version = ?", prev).
		Exec(ctx)
	if err := checkCAS(res, err); err != nil {
		ticket.Version = prev
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}
	return nil
}

// UpdateEvent writes the event row under the same version check as
// UpdateTicket, then the attendee entries and history rows the aggregate
// produced since it was loaded.
func (t *Tx) UpdateEvent(ctx context.Context, e *models.Event, now time.Time) error {
	prev := e.Version
	e.Version = prev + 1
	e.UpdatedAt = now

	res, err := t.tx.NewUpdate().
		Model(e).
		Column("status", "manual_status_control", "status_reason", "status_update_date",
			"attendance_current_count", "attendance_total_checkins", "attendance_last_updated",
			"version", "updated_at").
		WherePK().
		Where("version = ?", prev).
		Exec(ctx)
	if err := checkCAS(res, err); err != nil {
		e.Version = prev
		return fmt.Errorf("update event %s: %w", e.ID, err)
	}

	if touched := e.Attendance.Touched(); len(touched) > 0 {
		for _, r := range touched {
			r.EventID = e.ID
		}
		_, err := t.tx.NewInsert().
			Model(&touched).
			On("CONFLICT (event_id, ticket_id) DO UPDATE").
			Set("state = EXCLUDED.state").
			Set("scanned_at = EXCLUDED.scanned_at").
			Set("scanned_by = EXCLUDED.scanned_by").
			Set("first_checked_in_at = EXCLUDED.first_checked_in_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert attendees for %s: %w", e.ID, classify(err))
		}
	}

	if pending := e.Attendance.PendingHistory(); len(pending) > 0 {
		for i := range pending {
			pending[i].EventID = e.ID
		}
		if _, err := t.tx.NewInsert().Model(&pending).Exec(ctx); err != nil {
			return fmt.Errorf("append history for %s: %w", e.ID, classify(err))
		}
	}

	e.Attendance.MarkPersisted()
	return nil
}

func (t *Tx) ListCheckedInTickets(ctx context.Context, eventID string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := t.tx.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("check_in_state = ?", models.CheckInStateCheckedIn).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return tickets, nil
}

func (t *Tx) InvalidateValidTickets(ctx context.Context, eventID, reason string, now time.Time) (int, error) {
	res, err := t.tx.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_valid = ?", false).
		Set("invalidation_reason = ?", reason).
		Set("version = version + 1").
		Set("updated_at = ?", now).
		Where("event_id = ?", eventID).
		Where("is_valid = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}

func getTicket(ctx context.Context, db bun.IDB, ticketID string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	if err := db.NewSelect().Model(ticket).Where("id = ?", ticketID).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "Ticket not found")
	}
	return ticket, nil
}

func getEvent(ctx context.Context, db bun.IDB, eventID string) (*models.Event, error) {
	event := new(models.Event)
	if err := db.NewSelect().Model(event).Where("id = ?", eventID).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "Event not found")
	}
	return event, nil
}

func checkCAS(res sql.Result, err error) error {
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return apperr.WriteConflict(errors.New("row version changed"))
	}
	return nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(message)
	}
	return classify(err)
}

// classify maps driver errors onto apperr kinds. Errors that already carry a
// kind pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return apperr.Transient(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			// serialization_failure, deadlock_detected
			return apperr.WriteConflict(err)
		case "55P03", "57014", "53300":
			return apperr.Transient(err)
		}
		if strings.HasPrefix(string(pqErr.Code), "08") {
			return apperr.Transient(err)
		}
		return apperr.Internal(err)
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return apperr.Transient(err)
	}
	return apperr.Internal(err)
}
