package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Status values stored on attendance rows. Absent is derived, never stored.
const (
	StatusPresent = "Present"
	StatusOD      = "OD"
	StatusAbsent  = "Absent"
)

// Outcome is the result of recording a verified subject.
type Outcome string

const (
	OutcomeArrival         Outcome = "arrival"
	OutcomeDeparture       Outcome = "departure"
	OutcomeAlreadyComplete Outcome = "already_complete"
)

// ErrInvalidStatus is returned for statuses other than Present or OD.
var ErrInvalidStatus = errors.New("invalid attendance status")

// Attendance is one subject's row for one day.
type Attendance struct {
	SubjectID   string     `json:"subject_id"`
	Name        string     `json:"name"`
	Day         string     `json:"day"`
	ArrivalAt   *time.Time `json:"arrival_at,omitempty"`
	DepartureAt *time.Time `json:"departure_at,omitempty"`
	Status      string     `json:"status"`
}

// AttendanceRepository records and reports attendance.
type AttendanceRepository struct {
	s *Store
}

// Attendance returns the attendance repository for this store.
func (s *Store) Attendance() *AttendanceRepository {
	return &AttendanceRepository{s: s}
}

// Record marks the subject for today. The first call stores the arrival,
// the second the departure; later calls report the day as complete.
func (r *AttendanceRepository) Record(ctx context.Context, subjectID, name string) (Outcome, error) {
	now := r.s.now()
	day := now.Format(dayLayout)

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var arrival, departure sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT arrival_at, departure_at FROM attendance WHERE subject_id = ? AND day = ?`+r.s.forUpdate(),
		subjectID, day,
	).Scan(&arrival, &departure)

	var outcome Outcome
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendance (subject_id, day, name, arrival_at, status) VALUES (?, ?, ?, ?, ?)`,
			subjectID, day, name, now, StatusPresent,
		)
		outcome = OutcomeArrival
	case err != nil:
		return "", err
	case !arrival.Valid:
		// Row created by a status override; the first sighting is the arrival.
		_, err = tx.ExecContext(ctx,
			`UPDATE attendance SET arrival_at = ? WHERE subject_id = ? AND day = ?`,
			now, subjectID, day,
		)
		outcome = OutcomeArrival
	case !departure.Valid:
		_, err = tx.ExecContext(ctx,
			`UPDATE attendance SET departure_at = ? WHERE subject_id = ? AND day = ?`,
			now, subjectID, day,
		)
		outcome = OutcomeDeparture
	default:
		return OutcomeAlreadyComplete, nil
	}
	if err != nil {
		return "", fmt.Errorf("record attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return outcome, nil
}

// SetStatus sets the status of a subject's day, creating the row if needed.
func (r *AttendanceRepository) SetStatus(ctx context.Context, subjectID, day, status string) error {
	if status != StatusPresent && status != StatusOD {
		return ErrInvalidStatus
	}
	if _, err := time.Parse(dayLayout, day); err != nil {
		return fmt.Errorf("invalid day %q: %w", day, err)
	}

	sub, err := r.s.Subjects().GetByID(ctx, subjectID)
	if err != nil {
		return err
	}

	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE attendance SET status = ? WHERE subject_id = ? AND day = ?`,
		status, subjectID, day,
	)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (subject_id, day, name, status) VALUES (?, ?, ?, ?)`,
			subjectID, day, sub.Name, status,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByDay returns every row for day.
func (r *AttendanceRepository) ListByDay(ctx context.Context, day string) ([]Attendance, error) {
	return r.query(ctx,
		`SELECT subject_id, name, day, arrival_at, departure_at, status
		 FROM attendance WHERE day = ? ORDER BY arrival_at, subject_id`,
		day,
	)
}

// ListBySubject returns a subject's rows, optionally limited to a YYYY-MM month.
func (r *AttendanceRepository) ListBySubject(ctx context.Context, subjectID, month string) ([]Attendance, error) {
	return r.query(ctx,
		`SELECT subject_id, name, day, arrival_at, departure_at, status
		 FROM attendance WHERE subject_id = ? AND day LIKE ? ORDER BY day DESC`,
		subjectID, month+"%",
	)
}

// WorkingDays returns the distinct days on which anyone was recorded,
// newest first, optionally limited to a YYYY-MM month.
func (r *AttendanceRepository) WorkingDays(ctx context.Context, month string) ([]string, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT DISTINCT day FROM attendance WHERE day LIKE ? ORDER BY day DESC`,
		month+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// Month is an entry of the report month picker.
type Month struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AvailableMonths lists months with attendance plus every month of the
// current year, newest first.
func (r *AttendanceRepository) AvailableMonths(ctx context.Context) ([]Month, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT DISTINCT SUBSTR(day, 1, 7) FROM attendance`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		set[m] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	year := r.s.now().Year()
	for m := time.January; m <= time.December; m++ {
		set[fmt.Sprintf("%04d-%02d", year, int(m))] = struct{}{}
	}

	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(values)))

	months := make([]Month, 0, len(values))
	for _, v := range values {
		t, err := time.Parse(monthLayout, v)
		if err != nil {
			continue
		}
		months = append(months, Month{Value: v, Label: t.Format("January 2006")})
	}
	return months, nil
}

// DayReport is one row of a subject's history.
type DayReport struct {
	Day         string     `json:"day"`
	ArrivalAt   *time.Time `json:"arrival_at,omitempty"`
	DepartureAt *time.Time `json:"departure_at,omitempty"`
	Status      string     `json:"status"`
}

// Statistics summarises attendance over the working days of a period.
type Statistics struct {
	TotalDays  int     `json:"total_days"`
	Present    int     `json:"present"`
	OD         int     `json:"od"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Summary is a subject's attendance report.
type Summary struct {
	Subject    Subject     `json:"subject"`
	Statistics Statistics  `json:"statistics"`
	History    []DayReport `json:"history"`
}

// Summary builds the attendance report for a subject. Working days are the
// days on which anyone was recorded; month ("YYYY-MM") limits the period and
// statusFilter ("Present", "OD", "Absent" or "" for all) limits the history
// without affecting the statistics.
func (r *AttendanceRepository) Summary(ctx context.Context, subjectID, month, statusFilter string) (*Summary, error) {
	if month != "" {
		if _, err := time.Parse(monthLayout, month); err != nil {
			return nil, fmt.Errorf("invalid month %q: %w", month, err)
		}
	}

	sub, err := r.s.Subjects().GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	days, err := r.WorkingDays(ctx, month)
	if err != nil {
		return nil, err
	}

	rows, err := r.ListBySubject(ctx, subjectID, month)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]Attendance, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}

	summary := &Summary{Subject: *sub, History: []DayReport{}}
	stats := &summary.Statistics
	stats.TotalDays = len(days)

	if strings.EqualFold(statusFilter, "all") {
		statusFilter = ""
	}

	for _, day := range days {
		report := DayReport{Day: day, Status: StatusAbsent}
		if row, ok := byDay[day]; ok {
			report.Status = row.Status
			report.ArrivalAt = row.ArrivalAt
			report.DepartureAt = row.DepartureAt
		}

		switch report.Status {
		case StatusPresent:
			stats.Present++
		case StatusOD:
			stats.OD++
		default:
			stats.Absent++
		}

		if statusFilter == "" || report.Status == statusFilter {
			summary.History = append(summary.History, report)
		}
	}

	if stats.TotalDays > 0 {
		pct := float64(stats.Present+stats.OD) / float64(stats.TotalDays) * 100
		stats.Percentage = math.Round(pct*100) / 100
	}

	return summary, nil
}

func (r *AttendanceRepository) query(ctx context.Context, query string, args ...any) ([]Attendance, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Attendance
	for rows.Next() {
		var (
			a                  Attendance
			arrival, departure sql.NullTime
		)
		if err := rows.Scan(&a.SubjectID, &a.Name, &a.Day, &arrival, &departure, &a.Status); err != nil {
			return nil, err
		}
		if arrival.Valid {
			t := arrival.Time
			a.ArrivalAt = &t
		}
		if departure.Valid {
			t := departure.Time
			a.DepartureAt = &t
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
