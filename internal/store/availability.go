package store

import (
	"database/sql"
	"fmt"

	"github.com/mverner/kidplan/internal/model"
)

// AvailabilityStore persists the per-child availability grid so toggles
// survive restarts. Cells default to available and are never deleted by
// toggles; rows for a child only go away when the child does.
type AvailabilityStore struct {
	db *sql.DB
}

func NewAvailabilityStore(db *sql.DB) *AvailabilityStore {
	return &AvailabilityStore{db: db}
}

// EnsureDefaults inserts any missing (day, slot) cells for the child as
// available. Existing cells keep their current value.
func (s *AvailabilityStore) EnsureDefaults(childID int64) error {
	for _, day := range model.Weekdays {
		for _, slot := range model.TimeSlots {
			_, err := s.db.Exec(
				`INSERT INTO availability (child_id, day, time_slot, available) VALUES (?, ?, ?, 1)
				 ON CONFLICT(child_id, day, time_slot) DO NOTHING`,
				childID, day, slot,
			)
			if err != nil {
				return fmt.Errorf("ensure availability cell: %w", err)
			}
		}
	}
	return nil
}

// Set writes one cell.
func (s *AvailabilityStore) Set(childID int64, day, slot string, available bool) error {
	var v int
	if available {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO availability (child_id, day, time_slot, available) VALUES (?, ?, ?, ?)
		 ON CONFLICT(child_id, day, time_slot) DO UPDATE SET available = excluded.available`,
		childID, day, slot, v,
	)
	if err != nil {
		return fmt.Errorf("set availability cell: %w", err)
	}
	return nil
}

// Cells loads every stored cell as childID -> day -> slot -> available.
func (s *AvailabilityStore) Cells() (map[int64]map[string]map[string]bool, error) {
	rows, err := s.db.Query("SELECT child_id, day, time_slot, available FROM availability")
	if err != nil {
		return nil, fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()

	cells := make(map[int64]map[string]map[string]bool)
	for rows.Next() {
		var childID int64
		var day, slot string
		var available int
		if err := rows.Scan(&childID, &day, &slot, &available); err != nil {
			return nil, fmt.Errorf("scan availability cell: %w", err)
		}
		if cells[childID] == nil {
			cells[childID] = make(map[string]map[string]bool)
		}
		if cells[childID][day] == nil {
			cells[childID][day] = make(map[string]bool)
		}
		cells[childID][day][slot] = available != 0
	}
	return cells, rows.Err()
}
