package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCurrentMatchesMap(t *testing.T, a *Attendance) {
	t.Helper()
	current, _ := a.Recount()
	assert.Equal(t, current, a.CurrentCount)
}

func TestApplyCheckInCountsDistinctTickets(t *testing.T) {
	var a Attendance

	assert.True(t, a.ApplyCheckIn("t1", "staff", t0))
	assert.True(t, a.ApplyCheckIn("t2", "staff", t0.Add(time.Second)))
	assertCurrentMatchesMap(t, &a)

	assert.Equal(t, 2, a.CurrentCount)
	assert.Equal(t, 2, a.TotalCheckins)
	require.NotNil(t, a.LastUpdated)
	assert.Equal(t, t0.Add(time.Second), *a.LastUpdated)
}

func TestReCheckInAfterCheckOutDoesNotRecount(t *testing.T) {
	var a Attendance

	a.ApplyCheckIn("t1", "staff", t0)
	a.ApplyCheckOut("t1", "staff", t0.Add(time.Minute))
	assertCurrentMatchesMap(t, &a)
	assert.Equal(t, 0, a.CurrentCount)
	assert.Equal(t, 1, a.TotalCheckins)

	first := a.ApplyCheckIn("t1", "staff", t0.Add(2*time.Minute))
	assert.False(t, first)
	assert.Equal(t, 1, a.CurrentCount)
	assert.Equal(t, 1, a.TotalCheckins)
	assertCurrentMatchesMap(t, &a)
}

func TestApplyCheckOutCreatesMissingEntry(t *testing.T) {
	var a Attendance

	a.ApplyCheckOut("ghost", "system", t0)

	r, ok := a.Attendee("ghost")
	require.True(t, ok)
	assert.Equal(t, CheckInStateCheckedOut, r.State)
	assert.Equal(t, 0, a.CurrentCount)
	assert.Equal(t, 0, a.TotalCheckins)
}

func TestPendingHistoryAndTouchedAreDrainedOnPersist(t *testing.T) {
	var a Attendance
	a.Load(&AttendeeRecord{TicketID: "t0", State: CheckInStateCheckedIn, ScannedAt: t0})
	a.CurrentCount = 1

	a.ApplyCheckIn("t2", "staff", t0)
	a.ApplyCheckIn("t1", "staff", t0)
	a.ApplyCheckOut("t2", "staff", t0.Add(time.Second))

	touched := a.Touched()
	require.Len(t, touched, 2)
	assert.Equal(t, "t1", touched[0].TicketID)
	assert.Equal(t, "t2", touched[1].TicketID)

	history := a.PendingHistory()
	require.Len(t, history, 3)
	assert.Equal(t, ActionCheckOut, history[2].Action)

	a.MarkPersisted()
	assert.Empty(t, a.Touched())
	assert.Empty(t, a.PendingHistory())
	assert.Equal(t, 2, a.CurrentCount)
}

func TestReconcileRepairsDrift(t *testing.T) {
	first := t0
	var a Attendance
	a.Load(
		&AttendeeRecord{TicketID: "t1", State: CheckInStateCheckedIn, FirstCheckedInAt: &first},
		&AttendeeRecord{TicketID: "t2", State: CheckInStateCheckedOut, FirstCheckedInAt: &first},
		&AttendeeRecord{TicketID: "t3", State: CheckInStateCheckedIn, FirstCheckedInAt: &first},
	)
	a.CurrentCount = 7
	a.TotalCheckins = 1

	assert.True(t, a.Reconcile())
	assert.Equal(t, 2, a.CurrentCount)
	assert.Equal(t, 3, a.TotalCheckins)
	assert.False(t, a.Reconcile())
}

func TestReconcileNeverLowersTotal(t *testing.T) {
	var a Attendance
	a.TotalCheckins = 5

	a.Reconcile()
	assert.Equal(t, 5, a.TotalCheckins)
	assert.Equal(t, 0, a.CurrentCount)
}

func TestCheckedInOrderedByScanTime(t *testing.T) {
	var a Attendance
	a.ApplyCheckIn("late", "staff", t0.Add(time.Hour))
	a.ApplyCheckIn("early", "staff", t0)
	a.ApplyCheckIn("gone", "staff", t0)
	a.ApplyCheckOut("gone", "staff", t0.Add(time.Minute))

	ids := []string{}
	for _, r := range a.CheckedIn() {
		ids = append(ids, r.TicketID)
	}
	assert.Equal(t, []string{"early", "late"}, ids)
}
