package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

var topics = config.TopicConfig{
	CheckedIn:     "attendance.checked_in",
	CheckedOut:    "attendance.checked_out",
	StatusChanged: "event.status_changed",
}

func TestPublishAttendanceRoutesByAction(t *testing.T) {
	writer := new(MockWriter)
	p := &Producer{Writer: writer, Topics: topics, Logger: logger.Discard()}

	var sent []kafka.Message
	writer.On("WriteMessages", mock.Anything).Run(func(args mock.Arguments) {
		sent = append(sent, args.Get(0).([]kafka.Message)...)
	}).Return(nil)

	at := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishAttendance(context.Background(), models.AttendanceEvent{
		EventID: "event-1", TicketID: "ticket-1", Action: models.ActionCheckIn, OccurredAt: at, FirstCheckIn: true,
	}))
	require.NoError(t, p.PublishAttendance(context.Background(), models.AttendanceEvent{
		EventID: "event-1", TicketID: "ticket-1", Action: models.ActionCheckOut, OccurredAt: at,
	}))

	require.Len(t, sent, 2)
	assert.Equal(t, "attendance.checked_in", sent[0].Topic)
	assert.Equal(t, "attendance.checked_out", sent[1].Topic)
	assert.Equal(t, []byte("event-1"), sent[0].Key)

	var decoded models.AttendanceEvent
	require.NoError(t, json.Unmarshal(sent[0].Value, &decoded))
	assert.Equal(t, "ticket-1", decoded.TicketID)
	assert.True(t, decoded.FirstCheckIn)
}

func TestPublishStatusChangedWrapsWriterErrors(t *testing.T) {
	writer := new(MockWriter)
	p := &Producer{Writer: writer, Topics: topics, Logger: logger.Discard()}
	writer.On("WriteMessages", mock.Anything).Return(errors.New("leader not available"))

	err := p.PublishStatusChanged(context.Background(), models.StatusChangedEvent{
		EventID: "event-1", OldStatus: models.EventStatusOngoing, NewStatus: models.EventStatusPast,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event.status_changed")
	assert.Contains(t, err.Error(), "leader not available")
	writer.AssertExpectations(t)
}
