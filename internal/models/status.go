package models

import "time"

type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusPast      EventStatus = "past"
	EventStatusPostponed EventStatus = "postponed"
	EventStatusCancelled EventStatus = "cancelled"
)

// MaxStatusReasonLength bounds statusReason, counted in characters.
const MaxStatusReasonLength = 500

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusUpcoming, EventStatusOngoing, EventStatusPast, EventStatusPostponed, EventStatusCancelled:
		return true
	}
	return false
}

// Sticky statuses are never overridden by time-based derivation.
func (s EventStatus) Sticky() bool {
	return s == EventStatusCancelled || s == EventStatusPostponed
}

// Invalidates reports whether entering s cascades ticket invalidation.
func (s EventStatus) Invalidates() bool {
	return s == EventStatusCancelled || s == EventStatusPostponed || s == EventStatusPast
}

func (s EventStatus) RequiresReason() bool {
	return s.Sticky()
}

// DeriveStatus maps a point in time onto the event window. Both bounds are
// inclusive for ongoing.
func DeriveStatus(start, end, now time.Time) EventStatus {
	switch {
	case now.Before(start):
		return EventStatusUpcoming
	case now.After(end):
		return EventStatusPast
	default:
		return EventStatusOngoing
	}
}
