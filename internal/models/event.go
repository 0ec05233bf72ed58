package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                  string      `bun:"id,pk" json:"id"`
	Title               string      `bun:"title,notnull" json:"title"`
	OrganizerID         string      `bun:"organizer_id,notnull" json:"organizerId"`
	StartDate           time.Time   `bun:"start_date,notnull" json:"startDate"`
	EndDate             time.Time   `bun:"end_date,notnull" json:"endDate"`
	Status              EventStatus `bun:"status,notnull" json:"status"`
	ManualStatusControl bool        `bun:"manual_status_control,notnull" json:"manualStatusControl"`
	StatusReason        string      `bun:"status_reason" json:"statusReason,omitempty"`
	StatusUpdateDate    *time.Time  `bun:"status_update_date" json:"statusUpdateDate,omitempty"`
	Attendance          Attendance  `bun:"embed:attendance_" json:"attendance"`
	Version             int64       `bun:"version,notnull" json:"-"`
	CreatedAt           time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt           time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

// AutoStatus returns the time-derived status and whether automatic control
// applies at all. Manual control and sticky statuses suspend derivation.
func (e *Event) AutoStatus(now time.Time) (EventStatus, bool) {
	if e.ManualStatusControl || e.Status.Sticky() {
		return e.Status, false
	}
	return DeriveStatus(e.StartDate, e.EndDate, now), true
}

// NeedsRefresh reports whether the stored status has drifted from the clock.
func (e *Event) NeedsRefresh(now time.Time) bool {
	next, auto := e.AutoStatus(now)
	return auto && next != e.Status
}

// InvalidationReason is the reason stamped on tickets by the cascade.
func InvalidationReason(status EventStatus) string {
	return fmt.Sprintf("Event %s", status)
}
