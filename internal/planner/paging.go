package planner

import (
	"time"

	"github.com/mverner/kidplan/internal/model"
)

// TotalWeeks returns the number of 7-day pages needed to cover the
// inclusive [start, end] planning range, at least 1.
func TotalWeeks(start, end time.Time) int {
	start = startOfDay(start)
	end = startOfDay(end)
	if end.Before(start) {
		return 1
	}
	days := int(end.Sub(start).Hours()/24) + 1
	weeks := (days + 6) / 7
	if weeks < 1 {
		weeks = 1
	}
	return weeks
}

// WeekStart returns the first date of the given week page. It is a pure
// function of (start, page): WeekStart(start, 0) == start.
func WeekStart(start time.Time, page int) time.Time {
	return startOfDay(start).AddDate(0, 0, 7*page)
}

// ClampPage bounds a page index to [0, totalWeeks-1].
func ClampPage(page, totalWeeks int) int {
	if page < 0 {
		return 0
	}
	if page > totalWeeks-1 {
		return totalWeeks - 1
	}
	return page
}

// CommitDate resolves a day name to a concrete date within the week
// starting at weekStart (Monday -> weekStart ... Sunday -> weekStart+6).
// The zero time is returned for an unknown day name.
func CommitDate(weekStart time.Time, day string) time.Time {
	offset := model.DayIndex(day)
	if offset < 0 {
		return time.Time{}
	}
	return startOfDay(weekStart).AddDate(0, 0, offset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
