package planner

import (
	"context"
	"fmt"
)

// CommitResult reports a calendar commit attempt.
type CommitResult struct {
	Committed int  `json:"committed"`
	Cleared   bool `json:"cleared"`
}

// CommitApproved persists the approved subset to the calendar, resolving
// each entry's day name against the currently viewed week page's start
// date. Entries are committed one at a time: a failure stops further
// commits but already-committed entries stay committed, and the plan is
// only cleared after every approved entry commits cleanly.
func (s *Session) CommitApproved(ctx context.Context) (CommitResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return CommitResult{}, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return CommitResult{}, ErrBusy
	}
	if s.plan == nil {
		s.mu.Unlock()
		return CommitResult{}, ErrNoPlan
	}
	plan := s.plan
	approved := plan.ApprovedEntries()
	weekStart := WeekStart(s.start, s.page)
	s.busy = true
	s.mu.Unlock()

	var result CommitResult
	for _, ref := range approved {
		date := CommitDate(weekStart, ref.Entry.Day)
		if date.IsZero() {
			s.finishCommit()
			return result, fmt.Errorf("entry has unknown day %q", ref.Entry.Day)
		}
		if err := s.calendar.Add(ctx, ref.Entry.ChildID, ref.Entry.ActivityID, "planned", date, ref.Entry.Time); err != nil {
			s.finishCommit()
			return result, fmt.Errorf("commit %s for child %d: %w", ref.Entry.ActivityName, ref.Entry.ChildID, err)
		}
		result.Committed++
	}

	s.mu.Lock()
	s.busy = false
	if s.closed {
		s.mu.Unlock()
		return result, ErrClosed
	}
	// Clear only after a clean, complete commit of the plan we started
	// from.
	if s.plan == plan {
		s.plan = nil
		s.conv = nil
		s.page = 0
		result.Cleared = true
	}
	s.mu.Unlock()

	s.emit("plan_committed", map[string]any{"committed": result.Committed})
	return result, nil
}

func (s *Session) finishCommit() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}
