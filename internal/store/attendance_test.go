package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubjects(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Subjects().Create(context.Background(), &Subject{ID: id, Name: "Subject " + id}))
	}
}

func TestAttendance_RecordLifecycle(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1")
	repo := s.Attendance()

	outcome, err := repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeArrival, outcome)

	*now = now.Add(8 * time.Hour)
	outcome, err = repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeparture, outcome)

	outcome, err = repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyComplete, outcome)

	rows, err := repo.ListByDay(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusPresent, rows[0].Status)
	require.NotNil(t, rows[0].ArrivalAt)
	require.NotNil(t, rows[0].DepartureAt)
	assert.True(t, rows[0].DepartureAt.After(*rows[0].ArrivalAt))

	// Next day starts again with an arrival
	*now = now.Add(24 * time.Hour)
	outcome, err = repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeArrival, outcome)
}

func TestAttendance_RecordUnknownSubject(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Attendance().Record(context.Background(), "ghost", "Ghost")
	assert.Error(t, err)
}

func TestAttendance_SetStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1")
	repo := s.Attendance()

	assert.ErrorIs(t, repo.SetStatus(ctx, "S1", "2026-03-01", "Holiday"), ErrInvalidStatus)
	assert.Error(t, repo.SetStatus(ctx, "S1", "March 1", StatusOD))
	assert.ErrorIs(t, repo.SetStatus(ctx, "ghost", "2026-03-01", StatusOD), ErrNotFound)

	// OD on a day with no row creates one without arrival
	require.NoError(t, repo.SetStatus(ctx, "S1", "2026-03-01", StatusOD))
	rows, err := repo.ListByDay(ctx, "2026-03-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusOD, rows[0].Status)
	assert.Nil(t, rows[0].ArrivalAt)

	// OD on an existing row keeps its times
	_, err = repo.Record(ctx, "S1", "Subject S1")
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, "S1", "2026-03-02", StatusOD))
	rows, err = repo.ListByDay(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusOD, rows[0].Status)
	assert.NotNil(t, rows[0].ArrivalAt)
}

func TestAttendance_RecordAfterStatusOverride(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1")
	repo := s.Attendance()

	require.NoError(t, repo.SetStatus(ctx, "S1", "2026-03-02", StatusOD))

	outcome, err := repo.Record(ctx, "S1", "Subject S1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeArrival, outcome)
}

func TestAttendance_Summary(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1", "S2")
	repo := s.Attendance()

	at := func(day string) {
		d, err := time.ParseInLocation("2006-01-02", day, time.Local)
		require.NoError(t, err)
		*now = d.Add(9 * time.Hour)
	}

	// Four working days in March, one in February
	at("2026-02-27")
	_, err := repo.Record(ctx, "S2", "Bob")
	require.NoError(t, err)
	at("2026-03-02")
	_, err = repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	at("2026-03-03")
	_, err = repo.Record(ctx, "S2", "Bob")
	require.NoError(t, err)
	at("2026-03-04")
	_, err = repo.Record(ctx, "S1", "Alice")
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, "S1", "2026-03-05", StatusOD))

	summary, err := repo.Summary(ctx, "S1", "2026-03", "")
	require.NoError(t, err)
	assert.Equal(t, "S1", summary.Subject.ID)
	assert.Equal(t, Statistics{TotalDays: 4, Present: 2, OD: 1, Absent: 1, Percentage: 75}, summary.Statistics)
	require.Len(t, summary.History, 4)
	assert.Equal(t, "2026-03-05", summary.History[0].Day, "history is newest first")
	assert.Equal(t, StatusAbsent, summary.History[2].Status)

	absent, err := repo.Summary(ctx, "S1", "2026-03", StatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, summary.Statistics, absent.Statistics, "filter only narrows history")
	require.Len(t, absent.History, 1)
	assert.Equal(t, "2026-03-03", absent.History[0].Day)

	all, err := repo.Summary(ctx, "S1", "", "All")
	require.NoError(t, err)
	assert.Equal(t, 5, all.Statistics.TotalDays)
	assert.Equal(t, 2, all.Statistics.Absent)
	assert.Len(t, all.History, 5)
	assert.Equal(t, 60.0, all.Statistics.Percentage)

	_, err = repo.Summary(ctx, "ghost", "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Summary(ctx, "S1", "03/2026", "")
	assert.Error(t, err)
}

func TestAttendance_SummaryNoWorkingDays(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1")

	summary, err := s.Attendance().Summary(ctx, "S1", "", "")
	require.NoError(t, err)
	assert.Zero(t, summary.Statistics.TotalDays)
	assert.Zero(t, summary.Statistics.Percentage)
	assert.Empty(t, summary.History)
}

func TestAttendance_AvailableMonths(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	seedSubjects(t, s, "S1")

	*now = time.Date(2025, 11, 20, 9, 0, 0, 0, time.Local)
	_, err := s.Attendance().Record(ctx, "S1", "Alice")
	require.NoError(t, err)

	*now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	months, err := s.Attendance().AvailableMonths(ctx)
	require.NoError(t, err)

	require.Len(t, months, 13)
	assert.Equal(t, Month{Value: "2026-12", Label: "December 2026"}, months[0])
	assert.Equal(t, Month{Value: "2025-11", Label: "November 2025"}, months[12])
}
