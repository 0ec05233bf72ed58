package sse

import (
	"context"
	"sync"

	"ms-attendance/internal/models"
)

// AttendanceEmitter fans attendance snapshots out to the live dashboards
// subscribed to each event.
type AttendanceEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.AttendanceSnapshot
}

func NewAttendanceEmitter() *AttendanceEmitter {
	return &AttendanceEmitter{
		clients: make(map[string][]chan models.AttendanceSnapshot),
	}
}

// Subscribe registers a client for eventID until ctx is done, at which point
// the returned channel is closed.
func (e *AttendanceEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.AttendanceSnapshot {
	ch := make(chan models.AttendanceSnapshot, 10)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, ch)
	}()

	return ch
}

// EmitAttendance never blocks: a client whose buffer is full misses the
// update and catches up with the next one.
func (e *AttendanceEmitter) EmitAttendance(snapshot models.AttendanceSnapshot) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[snapshot.EventID] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (e *AttendanceEmitter) remove(eventID string, ch chan models.AttendanceSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, c := range clients {
		if c == ch {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

func (e *AttendanceEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
