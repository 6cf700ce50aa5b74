package model

// Weekdays lists the schedule day buckets in display order. The planner
// stores entries by day name, not by absolute date, so the same buckets
// are reused for every week page of a multi-week planning range.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimeSlots lists the valid time-slot names.
var TimeSlots = []string{"morning", "afternoon", "evening"}

// DayIndex returns the position of a day name within the week
// (Monday=0 … Sunday=6), or -1 for an unknown name.
func DayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// ValidTimeSlot reports whether slot is one of the known time slots.
func ValidTimeSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// ScheduleEntry is a single proposed activity for one child in one
// day/time slot. Entries are produced only by the planning service and
// are replaced wholesale, never field-patched.
type ScheduleEntry struct {
	ChildID         int64  `json:"child_id"`
	ChildName       string `json:"child_name,omitempty"`
	Day             string `json:"day"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ActivityID      string `json:"activity_id"`
	ActivityName    string `json:"activity_name"`
	Location        string `json:"location"`
}

type Conflict struct {
	ChildID     int64  `json:"child_id,omitempty"`
	Day         string `json:"day,omitempty"`
	Description string `json:"description"`
}

// WeeklySchedule is the generated weekly plan: the single source of
// truth for what is currently proposed.
type WeeklySchedule struct {
	Entries         map[string][]ScheduleEntry `json:"entries"`
	Conflicts       []Conflict                 `json:"conflicts,omitempty"`
	Suggestions     []string                   `json:"suggestions,omitempty"`
	TotalActivities int                        `json:"total_activities"`
	TotalCost       float64                    `json:"total_cost,omitempty"`
}
