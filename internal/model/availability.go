package model

// ChildAvailability is the wire form of one child's availability grid,
// serialized into planning requests. AvailableSlots maps day name to
// the time slots the child is free.
type ChildAvailability struct {
	ChildID        int64               `json:"child_id"`
	AvailableSlots map[string][]string `json:"available_slots"`
}
