package handler

import (
	"log/slog"
	"net/http"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/store"
	"github.com/mverner/kidplan/internal/websocket"
)

// AvailabilityHandler exposes the availability grid. The in-memory grid
// is authoritative; every toggle is written through to the store so the
// grid survives restarts.
type AvailabilityHandler struct {
	grid   *planner.Grid
	stored *store.AvailabilityStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewAvailabilityHandler(grid *planner.Grid, as *store.AvailabilityStore, hub *websocket.Hub, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{grid: grid, stored: as, hub: hub, logger: logger}
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	grid := h.grid.Serialize()
	if grid == nil {
		grid = []model.ChildAvailability{}
	}
	writeJSON(w, http.StatusOK, grid)
}

// ToggleSlot flips exactly one cell. Toggles on unknown children are
// no-ops by design, so the response just reflects the resulting grid.
func (h *AvailabilityHandler) ToggleSlot(w http.ResponseWriter, r *http.Request) {
	childID, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	day := r.PathValue("day")
	slot := r.PathValue("slot")
	if model.DayIndex(day) < 0 {
		writeError(w, http.StatusBadRequest, "unknown day")
		return
	}
	if !model.ValidTimeSlot(slot) {
		writeError(w, http.StatusBadRequest, "unknown time slot")
		return
	}

	available := h.grid.ToggleSlot(childID, day, slot)
	if err := h.stored.Set(childID, day, slot, available); err != nil {
		h.logger.Error("persist availability toggle", "child_id", childID, "error", err)
	}

	h.hub.Broadcast("availability_changed", map[string]any{"child_id": childID, "day": day})
	writeJSON(w, http.StatusOK, map[string]any{"child_id": childID, "day": day, "slot": slot, "available": available})
}

// ToggleDay applies the bulk convenience: all three slots turn off only
// when all three are currently on, otherwise all turn on.
func (h *AvailabilityHandler) ToggleDay(w http.ResponseWriter, r *http.Request) {
	childID, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}
	day := r.PathValue("day")
	if model.DayIndex(day) < 0 {
		writeError(w, http.StatusBadRequest, "unknown day")
		return
	}

	h.grid.ToggleDay(childID, day)
	for _, slot := range model.TimeSlots {
		if err := h.stored.Set(childID, day, slot, h.grid.Available(childID, day, slot)); err != nil {
			h.logger.Error("persist availability toggle", "child_id", childID, "error", err)
		}
	}

	h.hub.Broadcast("availability_changed", map[string]any{"child_id": childID, "day": day})

	slots := make(map[string]bool, len(model.TimeSlots))
	for _, slot := range model.TimeSlots {
		slots[slot] = h.grid.Available(childID, day, slot)
	}
	writeJSON(w, http.StatusOK, map[string]any{"child_id": childID, "day": day, "slots": slots})
}
