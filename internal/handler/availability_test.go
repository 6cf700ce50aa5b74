package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/store"
	"github.com/mverner/kidplan/internal/websocket"
)

func newTestAvailabilityHandler(t *testing.T) (*AvailabilityHandler, *store.AvailabilityStore) {
	t.Helper()
	db := setupTestDB(t)
	children := store.NewChildStore(db)
	availability := store.NewAvailabilityStore(db)

	child, err := children.Create("Ada", nil, "#ff8800")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := availability.EnsureDefaults(child.ID); err != nil {
		t.Fatalf("seed availability: %v", err)
	}

	roster, err := children.List()
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	grid := planner.NewGrid(roster)
	hub := websocket.NewHub(testLogger())
	return NewAvailabilityHandler(grid, availability, hub, testLogger()), availability
}

func toggleSlotRequest(id, day, slot string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/availability/"+id+"/"+day+"/"+slot+"/toggle", nil)
	req.SetPathValue("id", id)
	req.SetPathValue("day", day)
	req.SetPathValue("slot", slot)
	return req
}

func TestToggleSlotWritesThrough(t *testing.T) {
	h, availability := newTestAvailabilityHandler(t)

	rec := httptest.NewRecorder()
	h.ToggleSlot(rec, toggleSlotRequest("1", "Monday", "morning"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Available {
		t.Error("toggled cell should be unavailable")
	}

	cells, err := availability.Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if cells[1]["Monday"]["morning"] {
		t.Error("toggle was not persisted")
	}
}

func TestToggleSlotValidation(t *testing.T) {
	h, _ := newTestAvailabilityHandler(t)

	rec := httptest.NewRecorder()
	h.ToggleSlot(rec, toggleSlotRequest("1", "Funday", "morning"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown day: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ToggleSlot(rec, toggleSlotRequest("1", "Monday", "midnight"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown slot: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ToggleSlot(rec, toggleSlotRequest("abc", "Monday", "morning"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestToggleDayPersistsAllSlots(t *testing.T) {
	h, availability := newTestAvailabilityHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/availability/1/Tuesday/toggle", nil)
	req.SetPathValue("id", "1")
	req.SetPathValue("day", "Tuesday")

	rec := httptest.NewRecorder()
	h.ToggleDay(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Slots map[string]bool `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, slot := range model.TimeSlots {
		if resp.Slots[slot] {
			t.Errorf("slot %s should be off after toggling a fully-on day", slot)
		}
	}

	cells, err := availability.Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	for _, slot := range model.TimeSlots {
		if cells[1]["Tuesday"][slot] {
			t.Errorf("slot %s not persisted as off", slot)
		}
	}
}

func TestGetSerializesGrid(t *testing.T) {
	h, _ := newTestAvailabilityHandler(t)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/availability", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var grid []model.ChildAvailability
	if err := json.Unmarshal(rec.Body.Bytes(), &grid); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(grid) != 1 {
		t.Fatalf("got %d children, want 1", len(grid))
	}
	if len(grid[0].AvailableSlots["Monday"]) != 3 {
		t.Errorf("Monday = %v, want all slots free", grid[0].AvailableSlots["Monday"])
	}
}
