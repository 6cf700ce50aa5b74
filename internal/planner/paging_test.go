package planner

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTotalWeeks(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"single day", date(2025, 6, 2), date(2025, 6, 2), 1},
		{"exactly one week", date(2025, 6, 2), date(2025, 6, 8), 1},
		{"eight days rounds up", date(2025, 6, 2), date(2025, 6, 9), 2},
		{"two full weeks", date(2025, 6, 2), date(2025, 6, 15), 2},
		{"three weeks and a day", date(2025, 6, 2), date(2025, 6, 23), 4},
		{"end before start", date(2025, 6, 2), date(2025, 6, 1), 1},
	}
	for _, tt := range tests {
		if got := TotalWeeks(tt.start, tt.end); got != tt.want {
			t.Errorf("%s: TotalWeeks = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestWeekStartIsPure(t *testing.T) {
	start := date(2025, 6, 2) // a Monday

	if got := WeekStart(start, 0); !got.Equal(start) {
		t.Errorf("WeekStart(start, 0) = %v, want %v", got, start)
	}
	if got := WeekStart(start, 2); !got.Equal(date(2025, 6, 16)) {
		t.Errorf("WeekStart(start, 2) = %v, want 2025-06-16", got)
	}
	// Identical arguments, identical result
	a := WeekStart(start, 3)
	b := WeekStart(start, 3)
	if !a.Equal(b) {
		t.Errorf("WeekStart is not pure: %v != %v", a, b)
	}
}

func TestClampPage(t *testing.T) {
	if got := ClampPage(-1, 3); got != 0 {
		t.Errorf("ClampPage(-1, 3) = %d, want 0", got)
	}
	if got := ClampPage(5, 3); got != 2 {
		t.Errorf("ClampPage(5, 3) = %d, want 2", got)
	}
	if got := ClampPage(1, 3); got != 1 {
		t.Errorf("ClampPage(1, 3) = %d, want 1", got)
	}
}

func TestCommitDate(t *testing.T) {
	weekStart := date(2025, 6, 2) // Monday

	if got := CommitDate(weekStart, "Monday"); !got.Equal(weekStart) {
		t.Errorf("Monday = %v, want %v", got, weekStart)
	}
	if got := CommitDate(weekStart, "Wednesday"); !got.Equal(date(2025, 6, 4)) {
		t.Errorf("Wednesday = %v, want 2025-06-04", got)
	}
	if got := CommitDate(weekStart, "Sunday"); !got.Equal(date(2025, 6, 8)) {
		t.Errorf("Sunday = %v, want 2025-06-08", got)
	}
	if got := CommitDate(weekStart, "Funday"); !got.IsZero() {
		t.Errorf("unknown day should yield zero time, got %v", got)
	}
}
