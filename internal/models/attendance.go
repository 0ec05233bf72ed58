package models

import (
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// AttendeeRecord is one ticket's entry in an event's attendee map.
type AttendeeRecord struct {
	bun.BaseModel `bun:"table:event_attendees"`

	EventID          string       `bun:"event_id,pk" json:"-"`
	TicketID         string       `bun:"ticket_id,pk" json:"ticketId"`
	State            CheckInState `bun:"state,notnull" json:"status"`
	ScannedAt        time.Time    `bun:"scanned_at,notnull" json:"timestamp"`
	ScannedBy        string       `bun:"scanned_by" json:"scannedBy"`
	FirstCheckedInAt *time.Time   `bun:"first_checked_in_at" json:"-"`
}

// AttendanceHistoryEntry is an append-only audit row.
type AttendanceHistoryEntry struct {
	bun.BaseModel `bun:"table:attendance_history"`

	ID        int64         `bun:"id,pk,autoincrement" json:"id"`
	EventID   string        `bun:"event_id,notnull" json:"-"`
	TicketID  string        `bun:"ticket_id,notnull" json:"ticketId"`
	Action    CheckInAction `bun:"action,notnull" json:"action"`
	Timestamp time.Time     `bun:"occurred_at,notnull" json:"timestamp"`
	ScannedBy string        `bun:"scanned_by" json:"scannedBy"`
}

// Attendance is the per-event aggregate. The counters live on the event row;
// Attendees holds whatever subset of the attendee map the store loaded, and
// only touched entries and new history rows are written back.
type Attendance struct {
	CurrentCount  int        `bun:"current_count,notnull" json:"currentCount"`
	TotalCheckins int        `bun:"total_checkins,notnull" json:"totalCheckins"`
	LastUpdated   *time.Time `bun:"last_updated" json:"lastUpdated,omitempty"`

	Attendees map[string]*AttendeeRecord `bun:"-" json:"-"`

	touched map[string]struct{}
	pending []AttendanceHistoryEntry
}

func (a *Attendance) init() {
	if a.Attendees == nil {
		a.Attendees = make(map[string]*AttendeeRecord)
	}
	if a.touched == nil {
		a.touched = make(map[string]struct{})
	}
}

// Load merges stored attendee records into the map without marking them touched.
func (a *Attendance) Load(records ...*AttendeeRecord) {
	a.init()
	for _, r := range records {
		a.Attendees[r.TicketID] = r
	}
}

func (a *Attendance) Attendee(ticketID string) (*AttendeeRecord, bool) {
	r, ok := a.Attendees[ticketID]
	return r, ok
}

// ApplyCheckIn upserts the attendee entry and counts the ticket towards
// TotalCheckins only on its first-ever check-in. It reports whether this was
// the first check-in.
func (a *Attendance) ApplyCheckIn(ticketID, actor string, now time.Time) bool {
	a.init()

	r, ok := a.Attendees[ticketID]
	if !ok {
		r = &AttendeeRecord{TicketID: ticketID}
		a.Attendees[ticketID] = r
	}

	if r.State != CheckInStateCheckedIn {
		a.CurrentCount++
	}

	first := r.FirstCheckedInAt == nil
	if first {
		at := now
		r.FirstCheckedInAt = &at
		a.TotalCheckins++
	}

	r.State = CheckInStateCheckedIn
	r.ScannedAt = now
	r.ScannedBy = actor
	a.record(ticketID, ActionCheckIn, actor, now)

	return first
}

// ApplyCheckOut marks the attendee entry checked-out, creating it if the map
// never saw the ticket.
func (a *Attendance) ApplyCheckOut(ticketID, actor string, now time.Time) {
	a.init()

	r, ok := a.Attendees[ticketID]
	if !ok {
		r = &AttendeeRecord{TicketID: ticketID}
		a.Attendees[ticketID] = r
	}

	if r.State == CheckInStateCheckedIn && a.CurrentCount > 0 {
		a.CurrentCount--
	}

	r.State = CheckInStateCheckedOut
	r.ScannedAt = now
	r.ScannedBy = actor
	a.record(ticketID, ActionCheckOut, actor, now)
}

func (a *Attendance) record(ticketID string, action CheckInAction, actor string, now time.Time) {
	a.touched[ticketID] = struct{}{}
	a.pending = append(a.pending, AttendanceHistoryEntry{
		TicketID:  ticketID,
		Action:    action,
		Timestamp: now,
		ScannedBy: actor,
	})
	at := now
	a.LastUpdated = &at
}

// Recount scans the loaded attendee map. It is only meaningful once the
// whole map has been loaded.
func (a *Attendance) Recount() (current, total int) {
	for _, r := range a.Attendees {
		if r.State == CheckInStateCheckedIn {
			current++
		}
		if r.FirstCheckedInAt != nil {
			total++
		}
	}
	return current, total
}

// Reconcile overwrites the counters with a full recount and reports whether
// they had drifted. TotalCheckins never decreases.
func (a *Attendance) Reconcile() bool {
	current, total := a.Recount()
	if total < a.TotalCheckins {
		total = a.TotalCheckins
	}
	if current == a.CurrentCount && total == a.TotalCheckins {
		return false
	}
	a.CurrentCount = current
	a.TotalCheckins = total
	return true
}

// Touched returns the attendee entries changed since the last MarkPersisted,
// ordered by ticket id.
func (a *Attendance) Touched() []*AttendeeRecord {
	out := make([]*AttendeeRecord, 0, len(a.touched))
	for id := range a.touched {
		out = append(out, a.Attendees[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

func (a *Attendance) PendingHistory() []AttendanceHistoryEntry {
	return a.pending
}

func (a *Attendance) MarkPersisted() {
	a.touched = nil
	a.pending = nil
}

// CheckedIn returns the loaded attendees currently inside, oldest scan first.
func (a *Attendance) CheckedIn() []*AttendeeRecord {
	out := make([]*AttendeeRecord, 0, a.CurrentCount)
	for _, r := range a.Attendees {
		if r.State == CheckInStateCheckedIn {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScannedAt.Equal(out[j].ScannedAt) {
			return out[i].TicketID < out[j].TicketID
		}
		return out[i].ScannedAt.Before(out[j].ScannedAt)
	})
	return out
}
