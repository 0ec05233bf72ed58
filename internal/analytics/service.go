package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/models"

	"github.com/uptrace/bun"
)

// Service computes attendance analytics straight from the ticket and history
// tables. It never writes.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// TicketBreakdown counts an event's tickets by check-in state and validity.
type TicketBreakdown struct {
	Issued       int `json:"issued"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	NotCheckedIn int `json:"notCheckedIn"`
	CheckedIn    int `json:"checkedIn"`
	CheckedOut   int `json:"checkedOut"`
}

// HourlyArrivals contains scan activity for a single hour
type HourlyArrivals struct {
	Hour      time.Time `json:"hour"`
	CheckIns  int       `json:"checkIns"`
	CheckOuts int       `json:"checkOuts"`
}

// EventAttendanceAnalytics represents attendance analytics for one event
type EventAttendanceAnalytics struct {
	EventID       string             `json:"eventId"`
	OrganizerID   string             `json:"-"`
	Status        models.EventStatus `json:"status"`
	Tickets       TicketBreakdown    `json:"tickets"`
	CurrentCount  int                `json:"currentCount"`
	TotalCheckins int                `json:"totalCheckins"`
	// CheckInRate is the share of issued tickets admitted at least once.
	CheckInRate    float64          `json:"checkInRate"`
	ArrivalsByHour []HourlyArrivals `json:"arrivalsByHour"`
}

// BatchAttendanceAnalytics aggregates attendance across several events
type BatchAttendanceAnalytics struct {
	EventIDs       []string         `json:"eventIds"`
	Tickets        TicketBreakdown  `json:"tickets"`
	CurrentCount   int              `json:"currentCount"`
	TotalCheckins  int              `json:"totalCheckins"`
	CheckInRate    float64          `json:"checkInRate"`
	ArrivalsByHour []HourlyArrivals `json:"arrivalsByHour"`
}

type stateCount struct {
	EventID string              `bun:"event_id"`
	State   models.CheckInState `bun:"state"`
	Total   int                 `bun:"total"`
	Valid   int                 `bun:"valid"`
}

// GetEventAnalytics returns the attendance analytics for a single event.
func (s *Service) GetEventAnalytics(ctx context.Context, eventID string) (*EventAttendanceAnalytics, error) {
	event := new(models.Event)
	if err := s.db.NewSelect().Model(event).Where("id = ?", eventID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Event not found")
		}
		return nil, apperr.Internal(fmt.Errorf("load event %s: %w", eventID, err))
	}

	counts, err := s.ticketCounts(ctx, []string{eventID})
	if err != nil {
		return nil, err
	}
	arrivals, err := s.hourlyArrivals(ctx, []string{eventID})
	if err != nil {
		return nil, err
	}

	breakdown := sumCounts(counts)
	return &EventAttendanceAnalytics{
		EventID:        event.ID,
		OrganizerID:    event.OrganizerID,
		Status:         event.Status,
		Tickets:        breakdown,
		CurrentCount:   event.Attendance.CurrentCount,
		TotalCheckins:  event.Attendance.TotalCheckins,
		CheckInRate:    rate(event.Attendance.TotalCheckins, breakdown.Issued),
		ArrivalsByHour: arrivals,
	}, nil
}

// GetBatchEventAnalytics returns attendance aggregated over eventIDs. Unknown
// ids contribute nothing.
func (s *Service) GetBatchEventAnalytics(ctx context.Context, eventIDs []string) (*BatchAttendanceAnalytics, error) {
	batch := &BatchAttendanceAnalytics{EventIDs: eventIDs, ArrivalsByHour: []HourlyArrivals{}}
	if len(eventIDs) == 0 {
		batch.EventIDs = []string{}
		return batch, nil
	}

	var totals struct {
		Current int `bun:"current_count"`
		Total   int `bun:"total_checkins"`
	}
	err := s.db.NewRaw(`
		SELECT
			COALESCE(SUM(attendance_current_count), 0) AS current_count,
			COALESCE(SUM(attendance_total_checkins), 0) AS total_checkins
		FROM events
		WHERE id IN (?)`, bun.In(eventIDs)).Scan(ctx, &totals)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("sum attendance counters: %w", err))
	}

	counts, err := s.ticketCounts(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	arrivals, err := s.hourlyArrivals(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	batch.Tickets = sumCounts(counts)
	batch.CurrentCount = totals.Current
	batch.TotalCheckins = totals.Total
	batch.CheckInRate = rate(totals.Total, batch.Tickets.Issued)
	batch.ArrivalsByHour = arrivals
	return batch, nil
}

// OrganizerOf returns the organizer of each known event in eventIDs.
func (s *Service) OrganizerOf(ctx context.Context, eventIDs []string) (map[string]string, error) {
	owners := make(map[string]string, len(eventIDs))
	if len(eventIDs) == 0 {
		return owners, nil
	}

	var rows []struct {
		ID          string `bun:"id"`
		OrganizerID string `bun:"organizer_id"`
	}
	err := s.db.NewSelect().
		Model((*models.Event)(nil)).
		Column("id", "organizer_id").
		Where("id IN (?)", bun.In(eventIDs)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load event organizers: %w", err))
	}
	for _, row := range rows {
		owners[row.ID] = row.OrganizerID
	}
	return owners, nil
}

func (s *Service) ticketCounts(ctx context.Context, eventIDs []string) ([]stateCount, error) {
	var counts []stateCount
	err := s.db.NewRaw(`
		SELECT
			event_id,
			check_in_state AS state,
			COUNT(*) AS total,
			SUM(CASE WHEN is_valid THEN 1 ELSE 0 END) AS valid
		FROM tickets
		WHERE event_id IN (?)
		GROUP BY event_id, check_in_state`, bun.In(eventIDs)).Scan(ctx, &counts)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("count tickets: %w", err))
	}
	return counts, nil
}

// hourlyArrivals buckets history entries by UTC hour. Bucketing happens here
// rather than in SQL so Postgres and SQLite agree.
func (s *Service) hourlyArrivals(ctx context.Context, eventIDs []string) ([]HourlyArrivals, error) {
	var entries []models.AttendanceHistoryEntry
	err := s.db.NewSelect().
		Model(&entries).
		Column("action", "occurred_at").
		Where("event_id IN (?)", bun.In(eventIDs)).
		OrderExpr("occurred_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load attendance history: %w", err))
	}

	arrivals := []HourlyArrivals{}
	for _, e := range entries {
		hour := e.Timestamp.UTC().Truncate(time.Hour)
		if n := len(arrivals); n == 0 || !arrivals[n-1].Hour.Equal(hour) {
			arrivals = append(arrivals, HourlyArrivals{Hour: hour})
		}
		last := &arrivals[len(arrivals)-1]
		switch e.Action {
		case models.ActionCheckIn:
			last.CheckIns++
		case models.ActionCheckOut:
			last.CheckOuts++
		}
	}
	return arrivals, nil
}

func sumCounts(counts []stateCount) TicketBreakdown {
	var b TicketBreakdown
	for _, c := range counts {
		b.Issued += c.Total
		b.Valid += c.Valid
		switch c.State {
		case models.CheckInStateCheckedIn:
			b.CheckedIn += c.Total
		case models.CheckInStateCheckedOut:
			b.CheckedOut += c.Total
		default:
			b.NotCheckedIn += c.Total
		}
	}
	b.Invalid = b.Issued - b.Valid
	return b
}

func rate(admitted, issued int) float64 {
	if issued == 0 {
		return 0
	}
	return float64(admitted) / float64(issued)
}
