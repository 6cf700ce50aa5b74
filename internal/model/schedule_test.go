package model

import "testing"

func TestDayIndex(t *testing.T) {
	if got := DayIndex("Monday"); got != 0 {
		t.Errorf("Monday = %d, want 0", got)
	}
	if got := DayIndex("Sunday"); got != 6 {
		t.Errorf("Sunday = %d, want 6", got)
	}
	if got := DayIndex("Funday"); got != -1 {
		t.Errorf("unknown day = %d, want -1", got)
	}
}

func TestValidTimeSlot(t *testing.T) {
	for _, slot := range TimeSlots {
		if !ValidTimeSlot(slot) {
			t.Errorf("%s should be valid", slot)
		}
	}
	if ValidTimeSlot("midnight") {
		t.Error("midnight should not be valid")
	}
}
