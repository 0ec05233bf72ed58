package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CheckInState string

const (
	CheckInStateNotCheckedIn CheckInState = "not-checked-in"
	CheckInStateCheckedIn    CheckInState = "checked-in"
	CheckInStateCheckedOut   CheckInState = "checked-out"
)

type CheckInAction string

const (
	ActionCheckIn  CheckInAction = "check-in"
	ActionCheckOut CheckInAction = "check-out"
)

// SystemActor is recorded as the scanner for transitions made by the
// lifecycle rather than by staff.
const SystemActor = "system"

type CheckInHistoryEntry struct {
	Action    CheckInAction `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	ScannedBy string        `json:"scannedBy"`
}

type CheckInStatus struct {
	State            CheckInState          `bun:"state,notnull" json:"status"`
	LastCheckedInAt  *time.Time            `bun:"last_checked_in_at" json:"lastCheckedInAt,omitempty"`
	LastCheckedOutAt *time.Time            `bun:"last_checked_out_at" json:"lastCheckedOutAt,omitempty"`
	CheckInCount     int                   `bun:"count,notnull" json:"checkInCount"`
	History          []CheckInHistoryEntry `bun:"history" json:"history"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                 string        `bun:"id,pk" json:"id"`
	TicketNumber       string        `bun:"ticket_number,notnull,unique" json:"ticketNumber"`
	UserID             string        `bun:"user_id,notnull" json:"userId"`
	EventID            string        `bun:"event_id,notnull" json:"eventId"`
	IsValid            bool          `bun:"is_valid,notnull" json:"isValid"`
	InvalidationReason string        `bun:"invalidation_reason" json:"invalidationReason,omitempty"`
	CheckInStatus      CheckInStatus `bun:"embed:check_in_" json:"checkInStatus"`
	Version            int64         `bun:"version,notnull" json:"-"`
	CreatedAt          time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt          time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

// State returns the check-in state, treating an unset state as not-checked-in.
func (t *Ticket) State() CheckInState {
	if t.CheckInStatus.State == "" {
		return CheckInStateNotCheckedIn
	}
	return t.CheckInStatus.State
}
