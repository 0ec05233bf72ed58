package attendance

import (
	"context"
	"errors"
	"fmt"

	"ms-attendance/internal/apperr"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/qr"

	"github.com/jonboulle/clockwork"
)

// StatusRefresher lazily brings an event's status in line with the clock.
type StatusRefresher interface {
	Refresh(ctx context.Context, eventID string) (*models.Event, error)
}

// Locker serializes scans of the same ticket ahead of the transaction.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type SnapshotCache interface {
	Get(ctx context.Context, eventID string) (*models.AttendanceSnapshot, bool)
	Set(ctx context.Context, snapshot models.AttendanceSnapshot)
	Invalidate(ctx context.Context, eventID string)
}

type Publisher interface {
	PublishAttendance(ctx context.Context, evt models.AttendanceEvent) error
}

type Notifier interface {
	EmitAttendance(snapshot models.AttendanceSnapshot)
}

type QRDecoder interface {
	Decrypt(token string) (*qr.Payload, error)
}

type Options struct {
	Refresher  StatusRefresher
	Locker     Locker
	Cache      SnapshotCache
	Publisher  Publisher
	Notifier   Notifier
	QR         QRDecoder
	Clock      clockwork.Clock
	Logger     *logger.Logger
	MaxRetries int
}

type Service struct {
	store      Store
	refresher  StatusRefresher
	locker     Locker
	cache      SnapshotCache
	publisher  Publisher
	notifier   Notifier
	qr         QRDecoder
	clock      clockwork.Clock
	logger     *logger.Logger
	maxRetries int
}

func NewService(store Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	return &Service{
		store:      store,
		refresher:  opts.Refresher,
		locker:     opts.Locker,
		cache:      opts.Cache,
		publisher:  opts.Publisher,
		notifier:   opts.Notifier,
		qr:         opts.QR,
		clock:      opts.Clock,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
	}
}

type ScanRequest struct {
	TicketID     string
	TicketNumber string
	EncryptedQR  string
}

type ScanResult struct {
	Ticket     *models.Ticket      `json:"ticket"`
	Status     models.CheckInState `json:"status"`
	CanCheckIn bool                `json:"canCheckIn"`
}

type AttendanceView struct {
	CurrentCount       int                        `json:"currentCount"`
	TotalCheckins      int                        `json:"totalCheckins"`
	CheckedInAttendees []models.CheckedInAttendee `json:"checkedInAttendees"`
}

type TransitionResult struct {
	Ticket     *models.Ticket      `json:"ticket"`
	Status     models.CheckInState `json:"status"`
	Attendance AttendanceView      `json:"attendance"`
}

// Scan resolves a ticket by id and number (or by an encrypted QR payload)
// and reports whether it can be checked in right now.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	ticketID, ticketNumber := req.TicketID, req.TicketNumber
	if req.EncryptedQR != "" {
		if s.qr == nil {
			return nil, apperr.Validation("QR scanning is not configured")
		}
		payload, err := s.qr.Decrypt(req.EncryptedQR)
		if err != nil {
			return nil, apperr.NotFound("Invalid ticket")
		}
		ticketID, ticketNumber = payload.TicketID, payload.TicketNumber
	}
	if ticketID == "" || ticketNumber == "" {
		return nil, apperr.Validation("ticketId and ticketNumber are required")
	}

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("Invalid ticket")
		}
		return nil, err
	}

	event, err := s.currentEvent(ctx, ticket.EventID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}

	if err := ValidateScan(ticket, ticketNumber, event); err != nil {
		return nil, err
	}

	return &ScanResult{
		Ticket:     ticket,
		Status:     ticket.State(),
		CanCheckIn: ticket.State() != models.CheckInStateCheckedIn,
	}, nil
}

func (s *Service) CheckIn(ctx context.Context, ticketID, actor string) (*TransitionResult, error) {
	return s.transition(ctx, ticketID, models.ActionCheckIn, actor)
}

func (s *Service) CheckOut(ctx context.Context, ticketID, actor string) (*TransitionResult, error) {
	return s.transition(ctx, ticketID, models.ActionCheckOut, actor)
}

type committed struct {
	ticket *models.Ticket
	event  *models.Event
	first  bool
}

// transition is the single check-in/check-out unit of work: ticket and event
// are read, validated, mutated and written back inside one transaction, and
// the whole unit is replayed on write conflicts.
func (s *Service) transition(ctx context.Context, ticketID string, action models.CheckInAction, actor string) (*TransitionResult, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if action == models.ActionCheckIn {
		if _, err := s.currentEvent(ctx, ticket.EventID); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
	}

	unlock := s.lock(ctx, ticketID)
	defer unlock()

	var out committed
	err = Retry(ctx, s.maxRetries, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			res, err := s.apply(ctx, tx, ticketID, action, actor)
			if err != nil {
				return err
			}
			out = res
			return nil
		})
	})
	if err != nil {
		if apperr.IsRetryable(err) {
			s.logger.Warn("ATTENDANCE", fmt.Sprintf("%s of %s gave up after retries: %v", action, ticketID, err))
		}
		return nil, err
	}

	s.logger.LogCheckIn(string(action), ticketID, fmt.Sprintf("by %s, event %s now at %d/%d",
		actor, out.event.ID, out.event.Attendance.CurrentCount, out.event.Attendance.TotalCheckins))
	s.afterCommit(ctx, action, actor, out)

	return &TransitionResult{
		Ticket: out.ticket,
		Status: out.ticket.State(),
		Attendance: AttendanceView{
			CurrentCount:       out.event.Attendance.CurrentCount,
			TotalCheckins:      out.event.Attendance.TotalCheckins,
			CheckedInAttendees: s.checkedInOrEmpty(ctx, out.event.ID),
		},
	}, nil
}

func (s *Service) apply(ctx context.Context, tx Tx, ticketID string, action models.CheckInAction, actor string) (committed, error) {
	ticket, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return committed{}, err
	}

	event, err := tx.GetEvent(ctx, ticket.EventID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return committed{}, err
	}

	switch action {
	case models.ActionCheckIn:
		err = ValidateCheckIn(ticket, event)
	default:
		err = ValidateCheckOut(ticket)
		if err == nil && event == nil {
			err = apperr.NotFound("Event not found")
		}
	}
	if err != nil {
		return committed{}, err
	}

	if err := tx.LoadAttendees(ctx, event, ticket.ID); err != nil {
		return committed{}, err
	}

	now := s.clock.Now().UTC()
	var tr models.Transition
	first := false
	switch action {
	case models.ActionCheckIn:
		if tr = ticket.CheckIn(actor, now); tr.Applied {
			first = event.Attendance.ApplyCheckIn(ticket.ID, actor, now)
		}
	default:
		if tr = ticket.CheckOut(actor, now); tr.Applied {
			event.Attendance.ApplyCheckOut(ticket.ID, actor, now)
		}
	}
	if !tr.Applied {
		return committed{}, rejection(tr)
	}

	if err := tx.UpdateTicket(ctx, ticket, now); err != nil {
		return committed{}, err
	}
	if err := tx.UpdateEvent(ctx, event, now); err != nil {
		return committed{}, err
	}

	return committed{ticket: ticket, event: event, first: first}, nil
}

func (s *Service) afterCommit(ctx context.Context, action models.CheckInAction, actor string, c committed) {
	snapshot := c.event.Snapshot()
	if s.cache != nil {
		s.cache.Set(ctx, snapshot)
	}
	if s.notifier != nil {
		s.notifier.EmitAttendance(snapshot)
	}
	if s.publisher != nil {
		evt := models.AttendanceEvent{
			EventID:       c.event.ID,
			TicketID:      c.ticket.ID,
			TicketNumber:  c.ticket.TicketNumber,
			Action:        action,
			ScannedBy:     actor,
			OccurredAt:    s.clock.Now().UTC(),
			FirstCheckIn:  c.first,
			CurrentCount:  snapshot.CurrentCount,
			TotalCheckins: snapshot.TotalCheckins,
		}
		if err := s.publisher.PublishAttendance(ctx, evt); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for ticket %s: %v", action, c.ticket.ID, err))
		}
	}
}

// Reconcile recounts an event's attendance from the full attendee map and
// repairs the stored counters if they drifted.
func (s *Service) Reconcile(ctx context.Context, eventID string) (bool, error) {
	var (
		changed bool
		event   *models.Event
	)
	err := Retry(ctx, s.maxRetries, func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			e, err := tx.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if err := tx.LoadAttendees(ctx, e); err != nil {
				return err
			}
			changed, event = e.Attendance.Reconcile(), e
			if !changed {
				return nil
			}
			return tx.UpdateEvent(ctx, e, s.clock.Now().UTC())
		})
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.logger.Warn("ATTENDANCE", fmt.Sprintf("Reconciled event %s counters to %d/%d",
			eventID, event.Attendance.CurrentCount, event.Attendance.TotalCheckins))
		snapshot := event.Snapshot()
		if s.cache != nil {
			s.cache.Set(ctx, snapshot)
		}
		if s.notifier != nil {
			s.notifier.EmitAttendance(snapshot)
		}
	}
	return changed, nil
}

// GetEventAttendance returns the counters, possibly from cache.
func (s *Service) GetEventAttendance(ctx context.Context, eventID string) (*models.AttendanceSnapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, eventID); ok {
			return snap, nil
		}
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snapshot := event.Snapshot()
	if s.cache != nil {
		s.cache.Set(ctx, snapshot)
	}
	return &snapshot, nil
}

func (s *Service) GetCheckedInAttendees(ctx context.Context, eventID string) ([]models.CheckedInAttendee, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.checkedInOrEmpty(ctx, eventID), nil
}

func (s *Service) GetAttendanceHistory(ctx context.Context, eventID string) ([]models.HistoryView, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	history, err := s.store.ListAttendanceHistory(ctx, eventID)
	if err != nil {
		s.logger.Error("ATTENDANCE", fmt.Sprintf("Failed to load history for event %s: %v", eventID, err))
		return []models.HistoryView{}, nil
	}
	if history == nil {
		history = []models.HistoryView{}
	}
	return history, nil
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, ticketID)
}

func (s *Service) checkedInOrEmpty(ctx context.Context, eventID string) []models.CheckedInAttendee {
	attendees, err := s.store.ListCheckedInAttendees(ctx, eventID)
	if err != nil {
		s.logger.Error("ATTENDANCE", fmt.Sprintf("Failed to list attendees for event %s: %v", eventID, err))
		return []models.CheckedInAttendee{}
	}
	if attendees == nil {
		return []models.CheckedInAttendee{}
	}
	return attendees
}

func (s *Service) currentEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if s.refresher != nil {
		return s.refresher.Refresh(ctx, eventID)
	}
	return s.store.GetEvent(ctx, eventID)
}

func (s *Service) lock(ctx context.Context, ticketID string) func() {
	if s.locker == nil {
		return func() {}
	}
	unlock, err := s.locker.Lock(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("REDIS", fmt.Sprintf("Scan lock for %s unavailable, relying on version checks: %v", ticketID, err))
		}
		return func() {}
	}
	return unlock
}
