package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Setting keys used by the planner.
const (
	KeyExplanationShown = "planner_explanation_shown"
	KeyParentPINHash    = "parent_pin_hash"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key, or "" if the key has never been set.
func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// ExplanationShown reports whether the one-time planner explanation has
// been dismissed.
func (s *SettingsStore) ExplanationShown() (bool, error) {
	v, err := s.Get(KeyExplanationShown)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *SettingsStore) MarkExplanationShown() error {
	return s.Set(KeyExplanationShown, "true")
}
