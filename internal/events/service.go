// Package events owns the event status lifecycle: time-derived status,
// organizer overrides, and the ticket invalidation cascade that follows an
// event into cancelled, postponed or past.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/attendance"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"

	"github.com/jonboulle/clockwork"
)

type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt models.StatusChangedEvent) error
}

// SnapshotInvalidator drops cached attendance counters that a cascade made
// stale.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, eventID string)
}

type Options struct {
	Cache      SnapshotInvalidator
	Notifier   attendance.Notifier
	Clock      clockwork.Clock
	Logger     *logger.Logger
	Publisher  Publisher
	MaxRetries int
}

type Service struct {
	store      attendance.Store
	cache      SnapshotInvalidator
	notifier   attendance.Notifier
	clock      clockwork.Clock
	logger     *logger.Logger
	publisher  Publisher
	maxRetries int
}

func NewService(store attendance.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	return &Service{
		store:      store,
		cache:      opts.Cache,
		notifier:   opts.Notifier,
		clock:      opts.Clock,
		logger:     opts.Logger,
		publisher:  opts.Publisher,
		maxRetries: opts.MaxRetries,
	}
}

// StatusUpdate is an organizer's request to move an event to a new status.
// A nil ManualStatusControl leaves the current setting alone.
type StatusUpdate struct {
	Status              models.EventStatus `json:"status" validate:"required,oneof=upcoming ongoing past postponed cancelled"`
	ManualStatusControl *bool              `json:"manualStatusControl"`
	Reason              string             `json:"reason" validate:"max=500"`
}

// change describes what one committed status write did.
type change struct {
	event       *models.Event
	old         models.EventStatus
	invalidated int
	checkedOut  int
}

func (c change) changed() bool { return c.event != nil && c.old != c.event.Status }

// GetEvent returns the event with its status brought up to date.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return s.Refresh(ctx, eventID)
}

// Refresh re-derives an auto-controlled event's status from the clock and
// persists it, cascading if the event just became past. Events whose stored
// status is already current are returned without opening a transaction.
func (s *Service) Refresh(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.NeedsRefresh(s.clock.Now()) {
		return event, nil
	}

	var out change
	err = s.write(ctx, func(ctx context.Context, tx attendance.Tx) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		next, auto := e.AutoStatus(now)
		if !auto || next == e.Status {
			out = change{event: e, old: e.Status}
			return nil
		}
		out, err = s.applyStatus(ctx, tx, e, next, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.changed() {
		s.logger.LogStatus(eventID, fmt.Sprintf("Automatic status %s -> %s", out.old, out.event.Status))
		s.afterCommit(ctx, out, models.SystemActor)
	}
	return out.event, nil
}

// SetStatus applies an organizer's status update. Only the event's organizer
// may change it.
func (s *Service) SetStatus(ctx context.Context, eventID, actorID string, update StatusUpdate) (*models.Event, error) {
	if !update.Status.Valid() {
		return nil, apperr.Validation("Invalid status")
	}
	reason := strings.TrimSpace(update.Reason)
	if update.Status.RequiresReason() && reason == "" {
		return nil, apperr.Validation(fmt.Sprintf("A reason is required when an event is %s", update.Status))
	}
	if utf8.RuneCountInString(reason) > models.MaxStatusReasonLength {
		return nil, apperr.Validation(fmt.Sprintf("Reason must be at most %d characters", models.MaxStatusReasonLength))
	}

	var out change
	err := s.write(ctx, func(ctx context.Context, tx attendance.Tx) error {
		e, err := s.ownedEvent(ctx, tx, eventID, actorID)
		if err != nil {
			return err
		}

		if update.ManualStatusControl != nil {
			e.ManualStatusControl = *update.ManualStatusControl
		}
		now := s.clock.Now().UTC()
		if err := checkDates(e, update.Status, now); err != nil {
			return err
		}

		if update.Status.RequiresReason() {
			e.StatusReason = reason
		} else {
			e.StatusReason = ""
		}

		out, err = s.applyStatus(ctx, tx, e, update.Status, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogStatus(eventID, fmt.Sprintf("Organizer %s set status %s -> %s (manual=%t, invalidated=%d, checked out=%d)",
		actorID, out.old, out.event.Status, out.event.ManualStatusControl, out.invalidated, out.checkedOut))
	if out.changed() {
		s.afterCommit(ctx, out, actorID)
	}
	return out.event, nil
}

// ResumeAutomatic hands an event back to time-based status control.
// Cancelled and postponed events keep their status.
func (s *Service) ResumeAutomatic(ctx context.Context, eventID, actorID string) (*models.Event, error) {
	var out change
	err := s.write(ctx, func(ctx context.Context, tx attendance.Tx) error {
		e, err := s.ownedEvent(ctx, tx, eventID, actorID)
		if err != nil {
			return err
		}

		e.ManualStatusControl = false
		now := s.clock.Now().UTC()
		next, _ := e.AutoStatus(now)
		out, err = s.applyStatus(ctx, tx, e, next, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogStatus(eventID, fmt.Sprintf("Organizer %s resumed automatic status control, status %s", actorID, out.event.Status))
	if out.changed() {
		s.afterCommit(ctx, out, actorID)
	}
	return out.event, nil
}

// applyStatus moves e to next and writes it. Entering an invalidating status
// first checks out everyone still inside as the system actor, then
// invalidates every remaining valid ticket of the event.
func (s *Service) applyStatus(ctx context.Context, tx attendance.Tx, e *models.Event, next models.EventStatus, now time.Time) (change, error) {
	out := change{event: e, old: e.Status}
	if e.Status != next {
		e.Status = next
		e.StatusUpdateDate = &now
	}

	if out.changed() && next.Invalidates() {
		reason := models.InvalidationReason(next)

		inside, err := tx.ListCheckedInTickets(ctx, e.ID)
		if err != nil {
			return change{}, err
		}
		if len(inside) > 0 {
			ids := make([]string, len(inside))
			for i, t := range inside {
				ids[i] = t.ID
			}
			if err := tx.LoadAttendees(ctx, e, ids...); err != nil {
				return change{}, err
			}
		}

		for _, t := range inside {
			if t.Invalidate(reason) {
				out.invalidated++
			}
			if tr := t.CheckOut(models.SystemActor, now); tr.Applied {
				e.Attendance.ApplyCheckOut(t.ID, models.SystemActor, now)
				out.checkedOut++
			}
			if err := tx.UpdateTicket(ctx, t, now); err != nil {
				return change{}, err
			}
		}

		n, err := tx.InvalidateValidTickets(ctx, e.ID, reason, now)
		if err != nil {
			return change{}, err
		}
		out.invalidated += n
	}

	if err := tx.UpdateEvent(ctx, e, now); err != nil {
		return change{}, err
	}
	return out, nil
}

func (s *Service) ownedEvent(ctx context.Context, tx attendance.Tx, eventID, actorID string) (*models.Event, error) {
	e, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != actorID {
		return nil, apperr.Forbidden("Only the event organizer can change its status")
	}
	return e, nil
}

// checkDates rejects an automatic-mode status that contradicts the event
// window. Cancelled and postponed are always allowed.
func checkDates(e *models.Event, status models.EventStatus, now time.Time) error {
	if e.ManualStatusControl || status.Sticky() {
		return nil
	}
	if now.Before(e.StartDate) && status != models.EventStatusUpcoming {
		return apperr.Validation("Event cannot be started before start date")
	}
	if now.After(e.EndDate) && status != models.EventStatusPast {
		return apperr.Validation("Event must be marked as past after end date")
	}
	return nil
}

func (s *Service) write(ctx context.Context, fn func(ctx context.Context, tx attendance.Tx) error) error {
	return attendance.Retry(ctx, s.maxRetries, func() error {
		return s.store.RunInTx(ctx, fn)
	})
}

func (s *Service) afterCommit(ctx context.Context, c change, actor string) {
	if c.invalidated > 0 || c.checkedOut > 0 {
		s.logger.LogStatus(c.event.ID, fmt.Sprintf("Event %s: invalidated %d tickets, checked out %d attendees",
			c.event.Status, c.invalidated, c.checkedOut))
	}
	if c.checkedOut > 0 {
		if s.cache != nil {
			s.cache.Invalidate(ctx, c.event.ID)
		}
		if s.notifier != nil {
			s.notifier.EmitAttendance(c.event.Snapshot())
		}
	}
	if s.publisher == nil {
		return
	}
	evt := models.StatusChangedEvent{
		EventID:            c.event.ID,
		OldStatus:          c.old,
		NewStatus:          c.event.Status,
		Reason:             c.event.StatusReason,
		Manual:             c.event.ManualStatusControl,
		InvalidatedTickets: c.invalidated,
		CheckedOutTickets:  c.checkedOut,
		ChangedBy:          actor,
		OccurredAt:         s.clock.Now().UTC(),
	}
	if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish status change for event %s: %v", c.event.ID, err))
	}
}
