package planner

import (
	"sort"
	"sync"

	"github.com/mverner/kidplan/internal/model"
)

// Grid is the per-child availability grid over day x time-slot cells.
// Every known child has a cell for every combination; the default is
// available. Operations on an unknown child are no-ops.
type Grid struct {
	mu    sync.Mutex
	cells map[int64]map[string]map[string]bool
}

// NewGrid builds a grid with every cell available for the given children.
func NewGrid(children []model.Child) *Grid {
	g := &Grid{cells: make(map[int64]map[string]map[string]bool)}
	for _, c := range children {
		g.addChildLocked(c.ID)
	}
	return g
}

func (g *Grid) addChildLocked(childID int64) {
	days := make(map[string]map[string]bool, len(model.Weekdays))
	for _, day := range model.Weekdays {
		slots := make(map[string]bool, len(model.TimeSlots))
		for _, slot := range model.TimeSlots {
			slots[slot] = true
		}
		days[day] = slots
	}
	g.cells[childID] = days
}

// AddChild adds a child with all cells available. Existing cells are kept.
func (g *Grid) AddChild(childID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cells[childID]; !ok {
		g.addChildLocked(childID)
	}
}

// RemoveChild drops a child's cells.
func (g *Grid) RemoveChild(childID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.cells, childID)
}

// Set writes one cell, used when loading persisted state. Unknown
// children, days, and slots are ignored.
func (g *Grid) Set(childID int64, day, slot string, available bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if days, ok := g.cells[childID]; ok {
		if slots, ok := days[day]; ok {
			if _, ok := slots[slot]; ok {
				slots[slot] = available
			}
		}
	}
}

// Available reports one cell. Unknown cells read as false.
func (g *Grid) Available(childID int64, day, slot string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if days, ok := g.cells[childID]; ok {
		if slots, ok := days[day]; ok {
			return slots[slot]
		}
	}
	return false
}

// ToggleSlot flips exactly one cell and returns its new value.
func (g *Grid) ToggleSlot(childID int64, day, slot string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	days, ok := g.cells[childID]
	if !ok {
		return false
	}
	slots, ok := days[day]
	if !ok {
		return false
	}
	if _, ok := slots[slot]; !ok {
		return false
	}
	slots[slot] = !slots[slot]
	return slots[slot]
}

// ToggleDay is the bulk convenience: if all of the day's slots are on,
// turn them all off; otherwise turn them all on. Not a per-slot flip.
func (g *Grid) ToggleDay(childID int64, day string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	days, ok := g.cells[childID]
	if !ok {
		return
	}
	slots, ok := days[day]
	if !ok {
		return
	}
	allOn := true
	for _, slot := range model.TimeSlots {
		if !slots[slot] {
			allOn = false
			break
		}
	}
	for _, slot := range model.TimeSlots {
		slots[slot] = !allOn
	}
}

// Serialize renders the grid in the planning request wire form, listing
// the available slots per day for each child, ordered by child ID.
func (g *Grid) Serialize() []model.ChildAvailability {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int64, 0, len(g.cells))
	for id := range g.cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.ChildAvailability, 0, len(ids))
	for _, id := range ids {
		avail := model.ChildAvailability{
			ChildID:        id,
			AvailableSlots: make(map[string][]string, len(model.Weekdays)),
		}
		for _, day := range model.Weekdays {
			var free []string
			for _, slot := range model.TimeSlots {
				if g.cells[id][day][slot] {
					free = append(free, slot)
				}
			}
			avail.AvailableSlots[day] = free
		}
		out = append(out, avail)
	}
	return out
}
