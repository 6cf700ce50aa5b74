package planner

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mverner/kidplan/internal/model"
)

// RegenerateResult reports a batch regeneration: how many declined
// entries were replaced, and which failed. Failures leave the entry
// declined; they never abort the rest of the batch.
type RegenerateResult struct {
	Replaced int      `json:"replaced"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// RegenerateDeclined requests a fresh alternative for every declined
// entry, as a snapshot taken at trigger time. One running exclusion
// list is shared across the batch, seeded with every declined activity
// id and grown with each successful replacement, so no two entries in
// the batch receive the same suggestion. Replacements enter the ledger
// as pending: regeneration proposes, it does not auto-accept.
func (s *Session) RegenerateDeclined(ctx context.Context) (RegenerateResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return RegenerateResult{}, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return RegenerateResult{}, ErrBusy
	}
	if s.plan == nil {
		s.mu.Unlock()
		return RegenerateResult{}, ErrNoPlan
	}
	plan := s.plan
	declined := plan.DeclinedIdentities()
	exclusions := plan.DeclinedActivityIDs()
	weekStart := s.start
	s.busy = true
	s.mu.Unlock()

	var result RegenerateResult
	var errs error
	var resolved []string

	for i, identity := range declined {
		entry, ok := s.entryForIdentity(plan, identity)
		if !ok {
			continue
		}

		alt, err := s.svc.FindAlternative(ctx, AlternativeRequest{
			ChildID:             identity.ChildID,
			Day:                 identity.Day,
			TimeSlot:            entry.Time,
			ExcludedActivityIDs: append([]string(nil), exclusions...),
			WeekStart:           weekStart,
		})

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return result, ErrClosed
		}
		if s.plan != plan {
			// Plan was cancelled mid-batch; drop the remaining work.
			s.busy = false
			s.mu.Unlock()
			return result, nil
		}
		switch {
		case err != nil:
			s.logger.Warn("regenerate entry failed", "day", identity.Day, "index", identity.Index, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s entry %d: %w", identity.Day, identity.Index, err))
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("%s: no replacement for %s", identity.Day, entry.ActivityName))
		case alt == nil:
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("%s: no alternative found for %s", identity.Day, entry.ActivityName))
		default:
			if alt.Day == "" {
				alt.Day = identity.Day
			}
			if alt.Time == "" {
				alt.Time = entry.Time
			}
			if alt.ChildName == "" {
				alt.ChildName = entry.ChildName
			}
			if replaceErr := plan.Replace(identity.Day, identity.Index, *alt, StatePending); replaceErr == nil {
				exclusions = append(exclusions, alt.ActivityID)
				resolved = append(resolved, alt.ActivityID)
				result.Replaced++
			}
		}
		s.mu.Unlock()

		s.emit("regenerate_progress", map[string]any{"done": i + 1, "total": len(declined)})
	}

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()

	if len(resolved) > 0 {
		s.resolveDetails(ctx, resolved)
	}
	s.emit("regenerate_done", map[string]any{"replaced": result.Replaced, "failed": result.Failed})

	if errs != nil {
		s.logger.Warn("batch regeneration finished with failures", "replaced", result.Replaced, "errors", errs)
	}
	return result, nil
}

func (s *Session) entryForIdentity(plan *Plan, identity EntryIdentity) (model.ScheduleEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan != plan {
		return model.ScheduleEntry{}, false
	}
	entry, ok := plan.EntryAt(identity.Day, identity.Index)
	if !ok || entry.ActivityID != identity.ActivityID {
		return model.ScheduleEntry{}, false
	}
	return entry, true
}
