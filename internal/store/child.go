package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mverner/kidplan/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func (s *ChildStore) Create(name string, dateOfBirth *time.Time, color string) (*model.Child, error) {
	var dob sql.NullTime
	if dateOfBirth != nil {
		dob = sql.NullTime{Time: dateOfBirth.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		"INSERT INTO children (name, date_of_birth, color) VALUES (?, ?, ?)",
		name, dob, color,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id int64) (*model.Child, error) {
	var c model.Child
	var dob sql.NullTime

	err := s.db.QueryRow(
		"SELECT id, name, date_of_birth, color, created_at, updated_at FROM children WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &dob, &c.Color, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query child: %w", err)
	}

	if dob.Valid {
		c.DateOfBirth = &dob.Time
	}
	return &c, nil
}

func (s *ChildStore) List() ([]model.Child, error) {
	rows, err := s.db.Query("SELECT id, name, date_of_birth, color, created_at, updated_at FROM children ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		var c model.Child
		var dob sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &dob, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		if dob.Valid {
			c.DateOfBirth = &dob.Time
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(id int64, name string, dateOfBirth *time.Time, color string) (*model.Child, error) {
	var dob sql.NullTime
	if dateOfBirth != nil {
		dob = sql.NullTime{Time: dateOfBirth.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		"UPDATE children SET name = ?, date_of_birth = ?, color = ?, updated_at = ? WHERE id = ?",
		name, dob, color, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}

	return s.GetByID(id)
}

// Delete removes a child. Availability and calendar rows cascade.
func (s *ChildStore) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM children WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}
