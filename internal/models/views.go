package models

import "time"

// AttendanceSnapshot is the cheap read model of an event's counters.
type AttendanceSnapshot struct {
	EventID       string     `json:"eventId"`
	CurrentCount  int        `json:"currentCount"`
	TotalCheckins int        `json:"totalCheckins"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
}

func (e *Event) Snapshot() AttendanceSnapshot {
	return AttendanceSnapshot{
		EventID:       e.ID,
		CurrentCount:  e.Attendance.CurrentCount,
		TotalCheckins: e.Attendance.TotalCheckins,
		LastUpdated:   e.Attendance.LastUpdated,
	}
}

// CheckedInAttendee is a checked-in ticket joined with its holder.
type CheckedInAttendee struct {
	TicketID      string     `bun:"ticket_id" json:"ticketId"`
	TicketNumber  string     `bun:"ticket_number" json:"ticketNumber"`
	CheckedInAt   *time.Time `bun:"checked_in_at" json:"checkedInAt,omitempty"`
	CheckInCount  int        `bun:"check_in_count" json:"checkInCount"`
	HolderID      string     `bun:"holder_id" json:"userId"`
	HolderName    string     `bun:"holder_name" json:"name"`
	HolderEmail   string     `bun:"holder_email" json:"email"`
	LastScannedBy string     `bun:"scanned_by" json:"scannedBy,omitempty"`
}

// HistoryView is an audit entry with ticket, holder and scanner resolved.
type HistoryView struct {
	ID           int64         `bun:"id" json:"id"`
	TicketID     string        `bun:"ticket_id" json:"ticketId"`
	TicketNumber string        `bun:"ticket_number" json:"ticketNumber"`
	Action       CheckInAction `bun:"action" json:"action"`
	Timestamp    time.Time     `bun:"occurred_at" json:"timestamp"`
	HolderName   string        `bun:"holder_name" json:"attendeeName"`
	HolderEmail  string        `bun:"holder_email" json:"attendeeEmail"`
	ScannedByID  string        `bun:"scanned_by" json:"scannedById"`
	ScannedBy    string        `bun:"scanner_name" json:"scannedBy"`
}

// AttendanceEvent is published after a committed check-in or check-out.
type AttendanceEvent struct {
	EventID       string        `json:"eventId"`
	TicketID      string        `json:"ticketId"`
	TicketNumber  string        `json:"ticketNumber"`
	Action        CheckInAction `json:"action"`
	ScannedBy     string        `json:"scannedBy"`
	OccurredAt    time.Time     `json:"occurredAt"`
	FirstCheckIn  bool          `json:"firstCheckIn"`
	CurrentCount  int           `json:"currentCount"`
	TotalCheckins int           `json:"totalCheckins"`
}

// StatusChangedEvent is published after a committed status transition.
type StatusChangedEvent struct {
	EventID            string      `json:"eventId"`
	OldStatus          EventStatus `json:"oldStatus"`
	NewStatus          EventStatus `json:"newStatus"`
	Reason             string      `json:"reason,omitempty"`
	Manual             bool        `json:"manual"`
	InvalidatedTickets int         `json:"invalidatedTickets"`
	CheckedOutTickets  int         `json:"checkedOutTickets"`
	ChangedBy          string      `json:"changedBy"`
	OccurredAt         time.Time   `json:"occurredAt"`
}
