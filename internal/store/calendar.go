package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mverner/kidplan/internal/model"
)

// CalendarStore persists committed activities on children's calendars.
type CalendarStore struct {
	db *sql.DB
}

func NewCalendarStore(db *sql.DB) *CalendarStore {
	return &CalendarStore{db: db}
}

// Add records one activity on a child's calendar.
func (s *CalendarStore) Add(ctx context.Context, childID int64, activityID, status string, date time.Time, timeSlot string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO calendar_entries (child_id, activity_id, status, date, time_slot) VALUES (?, ?, ?, ?, ?)",
		childID, activityID, status, date.UTC(), timeSlot,
	)
	if err != nil {
		return fmt.Errorf("insert calendar entry: %w", err)
	}
	return nil
}

func (s *CalendarStore) ListByChild(childID int64) ([]model.CalendarEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, child_id, activity_id, status, date, time_slot, created_at FROM calendar_entries WHERE child_id = ? ORDER BY date, time_slot",
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar entries: %w", err)
	}
	defer rows.Close()
	return scanCalendarEntries(rows)
}

func (s *CalendarStore) ListByDateRange(start, end time.Time) ([]model.CalendarEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, child_id, activity_id, status, date, time_slot, created_at FROM calendar_entries WHERE date >= ? AND date < ? ORDER BY date, time_slot",
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar entries: %w", err)
	}
	defer rows.Close()
	return scanCalendarEntries(rows)
}

func scanCalendarEntries(rows *sql.Rows) ([]model.CalendarEntry, error) {
	var entries []model.CalendarEntry
	for rows.Next() {
		var e model.CalendarEntry
		if err := rows.Scan(&e.ID, &e.ChildID, &e.ActivityID, &e.Status, &e.Date, &e.TimeSlot, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
