package planner

import (
	"github.com/mverner/kidplan/internal/model"
)

type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateDeclined ApprovalState = "declined"
)

// EntryIdentity keys an approval ledger row. The index is the entry's
// position within its day's list at assignment time, so the identity
// must be recomputed whenever the entry at that position is replaced or
// the day's list is compacted.
type EntryIdentity struct {
	ChildID    int64
	ActivityID string
	Day        string
	Index      int
}

// EntryRef pairs an entry with its current position.
type EntryRef struct {
	Day   string
	Index int
	Entry model.ScheduleEntry
}

// Plan wraps the generated weekly schedule together with its approval
// ledger. Invariant: exactly one ledger row exists per current entry;
// every mutation that replaces or removes an entry retires the old
// identity in the same operation.
type Plan struct {
	Schedule *model.WeeklySchedule
	ledger   map[EntryIdentity]ApprovalState
}

// NewPlan takes ownership of a freshly generated schedule and opens one
// pending ledger row per entry.
func NewPlan(schedule *model.WeeklySchedule) *Plan {
	p := &Plan{
		Schedule: schedule,
		ledger:   make(map[EntryIdentity]ApprovalState),
	}
	for _, day := range model.Weekdays {
		for i, e := range schedule.Entries[day] {
			p.ledger[identityOf(e, i)] = StatePending
		}
	}
	return p
}

func identityOf(e model.ScheduleEntry, index int) EntryIdentity {
	return EntryIdentity{ChildID: e.ChildID, ActivityID: e.ActivityID, Day: e.Day, Index: index}
}

// EntryAt returns the entry at (day, index) if it exists.
func (p *Plan) EntryAt(day string, index int) (model.ScheduleEntry, bool) {
	entries := p.Schedule.Entries[day]
	if index < 0 || index >= len(entries) {
		return model.ScheduleEntry{}, false
	}
	return entries[index], true
}

// StateAt returns the approval state of the entry at (day, index).
func (p *Plan) StateAt(day string, index int) (ApprovalState, bool) {
	e, ok := p.EntryAt(day, index)
	if !ok {
		return "", false
	}
	state, ok := p.ledger[identityOf(e, index)]
	return state, ok
}

// ToggleApprove moves pending->approved, approved->pending. Invoked on
// a declined entry it is a no-op: approved and declined only reach each
// other through pending.
func (p *Plan) ToggleApprove(day string, index int) (ApprovalState, error) {
	return p.toggle(day, index, StateApproved)
}

// ToggleDecline moves pending->declined, declined->pending, and leaves
// approved entries untouched.
func (p *Plan) ToggleDecline(day string, index int) (ApprovalState, error) {
	return p.toggle(day, index, StateDeclined)
}

func (p *Plan) toggle(day string, index int, target ApprovalState) (ApprovalState, error) {
	e, ok := p.EntryAt(day, index)
	if !ok {
		return "", ErrEntryNotFound
	}
	id := identityOf(e, index)
	switch p.ledger[id] {
	case StatePending:
		p.ledger[id] = target
	case target:
		p.ledger[id] = StatePending
	}
	return p.ledger[id], nil
}

// Remove deletes the entry at (day, index) outright: its ledger row goes
// with it and the activity total is decremented. The rest of the day's
// identities are rebuilt for their new positions, keeping each entry's
// approval state.
func (p *Plan) Remove(day string, index int) error {
	entries := p.Schedule.Entries[day]
	if index < 0 || index >= len(entries) {
		return ErrEntryNotFound
	}

	delete(p.ledger, identityOf(entries[index], index))
	for j := index + 1; j < len(entries); j++ {
		old := identityOf(entries[j], j)
		state := p.ledger[old]
		delete(p.ledger, old)
		p.ledger[identityOf(entries[j], j-1)] = state
	}

	p.Schedule.Entries[day] = append(entries[:index], entries[index+1:]...)
	p.Schedule.TotalActivities--
	return nil
}

// Replace swaps in a new entry at (day, index), retiring the old
// identity and opening a row for the new one in the given state.
func (p *Plan) Replace(day string, index int, entry model.ScheduleEntry, state ApprovalState) error {
	entries := p.Schedule.Entries[day]
	if index < 0 || index >= len(entries) {
		return ErrEntryNotFound
	}
	delete(p.ledger, identityOf(entries[index], index))
	entries[index] = entry
	p.ledger[identityOf(entry, index)] = state
	return nil
}

// DeclinedIdentities returns the identities of all declined entries in
// Monday-to-Sunday order, then by position within the day.
func (p *Plan) DeclinedIdentities() []EntryIdentity {
	var ids []EntryIdentity
	for _, day := range model.Weekdays {
		for i, e := range p.Schedule.Entries[day] {
			id := identityOf(e, i)
			if p.ledger[id] == StateDeclined {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// DeclinedActivityIDs returns the activity ids of all declined entries,
// the seed of every exclusion list.
func (p *Plan) DeclinedActivityIDs() []string {
	var ids []string
	for _, identity := range p.DeclinedIdentities() {
		ids = append(ids, identity.ActivityID)
	}
	return ids
}

// ApprovedEntries returns the approved subset in day order.
func (p *Plan) ApprovedEntries() []EntryRef {
	var refs []EntryRef
	for _, day := range model.Weekdays {
		for i, e := range p.Schedule.Entries[day] {
			if p.ledger[identityOf(e, i)] == StateApproved {
				refs = append(refs, EntryRef{Day: day, Index: i, Entry: e})
			}
		}
	}
	return refs
}

// ApprovalsByDay renders the ledger aligned with the schedule's entry
// lists, for serialization.
func (p *Plan) ApprovalsByDay() map[string][]ApprovalState {
	out := make(map[string][]ApprovalState)
	for _, day := range model.Weekdays {
		entries := p.Schedule.Entries[day]
		if len(entries) == 0 {
			continue
		}
		states := make([]ApprovalState, len(entries))
		for i, e := range entries {
			states[i] = p.ledger[identityOf(e, i)]
		}
		out[day] = states
	}
	return out
}

// LedgerSize returns the number of ledger rows.
func (p *Plan) LedgerSize() int {
	return len(p.ledger)
}

// Counts tallies entries by approval state.
func (p *Plan) Counts() (pending, approved, declined int) {
	for _, state := range p.ledger {
		switch state {
		case StateApproved:
			approved++
		case StateDeclined:
			declined++
		default:
			pending++
		}
	}
	return
}
