package model

import "time"

// CalendarEntry is a committed activity on a child's persistent calendar.
type CalendarEntry struct {
	ID         int64     `json:"id"`
	ChildID    int64     `json:"child_id"`
	ActivityID string    `json:"activity_id"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
	TimeSlot   string    `json:"time_slot"`
	CreatedAt  time.Time `json:"created_at"`
}
