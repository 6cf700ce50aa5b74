package store

import (
	"testing"

	"github.com/mverner/kidplan/internal/model"
)

func TestEnsureDefaultsFillsGrid(t *testing.T) {
	db := setupTestDB(t)
	children := NewChildStore(db)
	s := NewAvailabilityStore(db)

	child, err := children.Create("Ada", nil, "#ff8800")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.EnsureDefaults(child.ID); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	cells, err := s.Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	want := len(model.Weekdays) * len(model.TimeSlots)
	got := 0
	for _, slots := range cells[child.ID] {
		for _, available := range slots {
			got++
			if !available {
				t.Error("default cell should be available")
			}
		}
	}
	if got != want {
		t.Errorf("got %d cells, want %d", got, want)
	}
}

func TestEnsureDefaultsKeepsExistingCells(t *testing.T) {
	db := setupTestDB(t)
	children := NewChildStore(db)
	s := NewAvailabilityStore(db)

	child, err := children.Create("Ada", nil, "#ff8800")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Set(child.ID, "Monday", "morning", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.EnsureDefaults(child.ID); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	cells, err := s.Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if cells[child.ID]["Monday"]["morning"] {
		t.Error("EnsureDefaults overwrote an existing toggle")
	}
	if !cells[child.ID]["Monday"]["afternoon"] {
		t.Error("missing cell should default to available")
	}
}

func TestSetUpserts(t *testing.T) {
	db := setupTestDB(t)
	children := NewChildStore(db)
	s := NewAvailabilityStore(db)

	child, err := children.Create("Ada", nil, "#ff8800")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Set(child.ID, "Friday", "evening", false); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if err := s.Set(child.ID, "Friday", "evening", true); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	cells, err := s.Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if !cells[child.ID]["Friday"]["evening"] {
		t.Error("cell should be available after second Set")
	}
}
