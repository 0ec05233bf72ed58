package events_test

import (
	"context"
	"testing"
	"time"

	"ms-attendance/internal/events"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepAdvancesStatusesAndRepairsCounters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	starting := testutil.SeedEvent(t, f.store, f.organizer.ID, t0.Add(30*time.Minute), t0.Add(3*time.Hour), models.EventStatusUpcoming)
	ending := testutil.SeedEvent(t, f.store, f.organizer.ID, t0.Add(-2*time.Hour), t0.Add(30*time.Minute), models.EventStatusOngoing)
	held := testutil.SeedEvent(t, f.store, f.organizer.ID, t0.Add(-2*time.Hour), t0.Add(30*time.Minute), models.EventStatusOngoing)
	endingTicket := testutil.SeedTicket(t, f.store, ending.ID, f.holder.ID)

	_, err := f.lifecycle.SetStatus(ctx, held.ID, f.organizer.ID, events.StatusUpdate{
		Status:              models.EventStatusOngoing,
		ManualStatusControl: boolPtr(true),
	})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	// Corrupt the stored counter behind the aggregate's back.
	startingTicket := testutil.SeedTicket(t, f.store, starting.ID, f.holder.ID)
	_, err = f.checkins.CheckIn(ctx, startingTicket.ID, f.staff.ID)
	require.NoError(t, err)
	_, err = f.store.Bun.NewUpdate().Model((*models.Event)(nil)).
		Set("attendance_current_count = ?", 7).
		Where("id = ?", starting.ID).
		Exec(ctx)
	require.NoError(t, err)

	sweeper := events.NewSweeper(f.store, f.lifecycle, f.checkins, logger.Discard())
	report, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Refreshed)
	assert.Equal(t, 1, report.Reconciled)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, models.EventStatusOngoing, testutil.MustEvent(t, f.store, starting.ID).Status)
	assert.Equal(t, models.EventStatusPast, testutil.MustEvent(t, f.store, ending.ID).Status)
	assert.Equal(t, models.EventStatusOngoing, testutil.MustEvent(t, f.store, held.ID).Status)
	assert.Equal(t, "Event past", testutil.MustTicket(t, f.store, endingTicket.ID).InvalidationReason)

	repaired := testutil.MustEvent(t, f.store, starting.ID)
	assert.Equal(t, 1, repaired.Attendance.CurrentCount)
	assert.Equal(t, 1, repaired.Attendance.TotalCheckins)

	again, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Refreshed)
	assert.Zero(t, again.Reconciled)
}

func TestSweeperStartStop(t *testing.T) {
	f := newFixture(t, nil)
	sweeper := events.NewSweeper(f.store, f.lifecycle, nil, logger.Discard())

	require.NoError(t, sweeper.Start(time.Hour, nil))
	assert.NoError(t, sweeper.Stop())
}
