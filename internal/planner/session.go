package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mverner/kidplan/internal/model"
)

// Constraints are the knobs sent with a generation request. AllowGaps
// permits the planner to leave slots empty instead of forcing full
// coverage; it is the higher-quality mode and the default.
type Constraints struct {
	MaxActivitiesPerChild    int  `json:"max_activities_per_child"`
	AvoidBackToBack          bool `json:"avoid_back_to_back"`
	ScheduleSiblingsTogether bool `json:"schedule_siblings_together"`
	AllowGaps                bool `json:"allow_gaps"`
}

// PlanRequest asks the planning service for a full weekly schedule.
type PlanRequest struct {
	StartDate         time.Time
	EndDate           time.Time
	Constraints       Constraints
	ChildAvailability []model.ChildAvailability
}

// AlternativeRequest asks for a single replacement activity. WeekStart
// is the planning range's start date, not the currently viewed page:
// the service reasons in absolute dates.
type AlternativeRequest struct {
	ChildID             int64
	Day                 string
	TimeSlot            string
	ExcludedActivityIDs []string
	WeekStart           time.Time
}

// Service is the external planning service: plan a week, find one
// alternative, and look up activity details.
type Service interface {
	PlanWeek(ctx context.Context, req PlanRequest) (*model.WeeklySchedule, error)
	FindAlternative(ctx context.Context, req AlternativeRequest) (*model.ScheduleEntry, error)
	GetActivityDetails(ctx context.Context, activityID string) (*model.Activity, error)
}

// Calendar is the external calendar collaborator approved entries are
// committed to.
type Calendar interface {
	Add(ctx context.Context, childID int64, activityID, status string, date time.Time, timeSlot string) error
}

// Notifier receives planner events for fan-out to connected clients.
type Notifier func(event string, extra map[string]any)

const detailLookupConcurrency = 4

// Session is one planning run over a date range: the availability grid
// snapshot, the generated plan and its ledger, the open refinement
// conversation, and the viewed week page. All mutation goes through the
// session's lock; at most one refinement or regeneration call is in
// flight at a time, and results landing after Close are dropped.
type Session struct {
	mu       sync.Mutex
	svc      Service
	calendar Calendar
	logger   *slog.Logger
	notify   Notifier

	children    []model.Child
	grid        *Grid
	start, end  time.Time
	constraints Constraints

	plan    *Plan
	conv    *Conversation
	page    int
	details map[string]*model.Activity

	busy   bool
	closed bool
}

func NewSession(svc Service, calendar Calendar, children []model.Child, grid *Grid, start, end time.Time, constraints Constraints, logger *slog.Logger, notify Notifier) *Session {
	return &Session{
		svc:         svc,
		calendar:    calendar,
		logger:      logger,
		notify:      notify,
		children:    children,
		grid:        grid,
		start:       startOfDay(start),
		end:         startOfDay(end),
		constraints: constraints,
		details:     make(map[string]*model.Activity),
	}
}

func (s *Session) emit(event string, extra map[string]any) {
	if s.notify != nil {
		s.notify(event, extra)
	}
}

// Close discards the session. Any in-flight service result lands on a
// closed session and is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.conv = nil
	s.plan = nil
	s.mu.Unlock()
}

// Generate asks the planning service for a weekly schedule and replaces
// the plan wholesale on success, opening a pending ledger row per entry
// and resolving activity details best-effort. With no children it fails
// validation before any service call. On failure the prior plan state
// is left untouched.
func (s *Session) Generate(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if len(s.children) == 0 {
		s.mu.Unlock()
		return ErrNoChildren
	}
	s.busy = true
	req := PlanRequest{
		StartDate:         s.start,
		EndDate:           s.end,
		Constraints:       s.constraints,
		ChildAvailability: s.grid.Serialize(),
	}
	s.mu.Unlock()

	schedule, err := s.svc.PlanWeek(ctx, req)

	s.mu.Lock()
	s.busy = false
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.normalizeSchedule(schedule)
	s.plan = NewPlan(schedule)
	s.conv = nil
	s.page = 0
	ids := distinctActivityIDs(schedule)
	total := schedule.TotalActivities
	s.mu.Unlock()

	s.resolveDetails(ctx, ids)
	s.emit("plan_generated", map[string]any{"total_activities": total})
	return nil
}

// normalizeSchedule fills fields the service may omit: the day bucket on
// each entry and child names from the roster.
func (s *Session) normalizeSchedule(schedule *model.WeeklySchedule) {
	if schedule.Entries == nil {
		schedule.Entries = make(map[string][]model.ScheduleEntry)
	}
	names := make(map[int64]string, len(s.children))
	for _, c := range s.children {
		names[c.ID] = c.Name
	}
	for day, entries := range schedule.Entries {
		for i := range entries {
			if entries[i].Day == "" {
				entries[i].Day = day
			}
			if entries[i].ChildName == "" {
				entries[i].ChildName = names[entries[i].ChildID]
			}
		}
	}
}

func distinctActivityIDs(schedule *model.WeeklySchedule) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, entries := range schedule.Entries {
		for _, e := range entries {
			if _, ok := seen[e.ActivityID]; !ok {
				seen[e.ActivityID] = struct{}{}
				ids = append(ids, e.ActivityID)
			}
		}
	}
	return ids
}

// resolveDetails fetches activity details concurrently into the additive
// cache. Lookups are best-effort: a failure degrades a single card and
// is only logged.
func (s *Session) resolveDetails(ctx context.Context, ids []string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(detailLookupConcurrency)
	for _, id := range ids {
		s.mu.Lock()
		_, have := s.details[id]
		s.mu.Unlock()
		if have {
			continue
		}
		g.Go(func() error {
			activity, err := s.svc.GetActivityDetails(ctx, id)
			if err != nil {
				s.logger.Warn("activity detail lookup failed", "activity_id", id, "error", err)
				return nil
			}
			if activity == nil {
				return nil
			}
			s.mu.Lock()
			if !s.closed {
				s.details[id] = activity
			}
			s.mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// ToggleApprove flips the entry at (day, index) between pending and
// approved. Declined entries are left alone.
func (s *Session) ToggleApprove(day string, index int) (ApprovalState, error) {
	return s.toggleState(day, index, "entry_approval", (*Plan).ToggleApprove)
}

// ToggleDecline flips the entry between pending and declined.
func (s *Session) ToggleDecline(day string, index int) (ApprovalState, error) {
	return s.toggleState(day, index, "entry_decline", (*Plan).ToggleDecline)
}

func (s *Session) toggleState(day string, index int, event string, fn func(*Plan, string, int) (ApprovalState, error)) (ApprovalState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if s.plan == nil {
		s.mu.Unlock()
		return "", ErrNoPlan
	}
	state, err := fn(s.plan, day, index)
	s.mu.Unlock()
	if err == nil {
		s.emit(event, map[string]any{"day": day, "index": index, "state": string(state)})
	}
	return state, err
}

// RemoveEntry deletes an entry outright, ledger row included. Rejected
// while a refinement or regeneration is in flight, since removal shifts
// the day's indices under the running operation.
func (s *Session) RemoveEntry(day string, index int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.plan == nil {
		s.mu.Unlock()
		return ErrNoPlan
	}
	err := s.plan.Remove(day, index)
	s.mu.Unlock()
	if err == nil {
		s.emit("entry_removed", map[string]any{"day": day, "index": index})
	}
	return err
}

// OpenRefinement starts a conversation about the entry at (day, index),
// replacing any previously open conversation.
func (s *Session) OpenRefinement(day string, index int) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.busy {
		return nil, ErrBusy
	}
	if s.plan == nil {
		return nil, ErrNoPlan
	}
	entry, ok := s.plan.EntryAt(day, index)
	if !ok {
		return nil, ErrEntryNotFound
	}
	s.conv = newConversation(day, index, entry)
	return s.conv.snapshot(), nil
}

// ReasonText resolves a canned reason key to its feedback text.
func ReasonText(key string) (string, bool) {
	text, ok := RefineReasons[key]
	return text, ok
}

// Respond records the user's feedback and requests one alternative with
// the full exclusion list. The suggestion, if any, is attached to an
// assistant turn as a provisional proposal; the schedule is untouched.
// A "no alternative" outcome and a service failure each produce their
// own assistant turn rather than an error, and the conversation never
// retries without new user input.
func (s *Session) Respond(ctx context.Context, message string) (*Conversation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.conv == nil {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	conv := s.conv
	conv.addUserTurn(message)
	req := AlternativeRequest{
		ChildID:             conv.Entry.ChildID,
		Day:                 conv.Day,
		TimeSlot:            conv.Entry.Time,
		ExcludedActivityIDs: conv.exclusions(s.plan.DeclinedActivityIDs()),
		WeekStart:           s.start,
	}
	s.busy = true
	s.mu.Unlock()

	alt, err := s.svc.FindAlternative(ctx, req)

	s.mu.Lock()
	s.busy = false
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.conv != conv {
		// Conversation was abandoned while the request was in flight.
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	switch {
	case err != nil:
		s.logger.Warn("find alternative failed", "child_id", req.ChildID, "day", req.Day, "error", err)
		conv.addAssistantTurn("Sorry, something went wrong while looking for an alternative. Please try again.", nil, false)
	case alt == nil:
		conv.addAssistantTurn("I couldn't find another activity for that slot. You can refine further or skip this one.", nil, true)
	default:
		if alt.Day == "" {
			alt.Day = conv.Day
		}
		if alt.Time == "" {
			alt.Time = conv.Entry.Time
		}
		if alt.ChildName == "" {
			alt.ChildName = conv.Entry.ChildName
		}
		conv.proposal = alt
		conv.addAssistantTurn(fmt.Sprintf("How about %s at %s instead?", alt.ActivityName, alt.Location), alt, false)
	}
	snap := conv.snapshot()
	s.mu.Unlock()

	if err == nil && alt != nil {
		s.resolveDetails(ctx, []string{alt.ActivityID})
	}
	return snap, nil
}

// AcceptProposal replaces the conversation's entry with the pending
// suggestion, retires the old identity, marks the new one approved, and
// closes the conversation.
func (s *Session) AcceptProposal() (model.ScheduleEntry, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.ScheduleEntry{}, ErrClosed
	}
	if s.conv == nil {
		s.mu.Unlock()
		return model.ScheduleEntry{}, ErrNoConversation
	}
	if s.conv.proposal == nil {
		s.mu.Unlock()
		return model.ScheduleEntry{}, ErrNoProposal
	}
	if s.busy {
		s.mu.Unlock()
		return model.ScheduleEntry{}, ErrBusy
	}
	if s.plan == nil {
		s.mu.Unlock()
		return model.ScheduleEntry{}, ErrNoPlan
	}
	entry := *s.conv.proposal
	day, index := s.conv.Day, s.conv.Index
	err := s.plan.Replace(day, index, entry, StateApproved)
	if err == nil {
		s.conv = nil
	}
	s.mu.Unlock()
	if err == nil {
		s.emit("entry_replaced", map[string]any{"day": day, "index": index, "activity_id": entry.ActivityID})
	}
	return entry, err
}

// DeclineProposal rejects the pending suggestion without touching the
// schedule: the suggestion's id joins the next exclusion list and the
// conversation loops for more feedback.
func (s *Session) DeclineProposal(feedback string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.conv == nil {
		return nil, ErrNoConversation
	}
	if s.conv.proposal == nil {
		return nil, ErrNoProposal
	}
	if feedback == "" {
		feedback = "Not this one either."
	}
	s.conv.rejected = append(s.conv.rejected, s.conv.proposal.ActivityID)
	s.conv.proposal = nil
	s.conv.addUserTurn(feedback)
	s.conv.addAssistantTurn("Okay, I won't suggest that one again. Anything else that didn't work?", nil, false)
	return s.conv.snapshot(), nil
}

// CloseRefinement abandons the conversation. The original entry and its
// approval state are left exactly as they were.
func (s *Session) CloseRefinement() {
	s.mu.Lock()
	s.conv = nil
	s.mu.Unlock()
}

// Conversation returns a copy of the open conversation, if any.
func (s *Session) Conversation() (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.snapshot(), s.conv != nil
}

// Page returns the currently viewed week page.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// SetPage clamps and stores the viewed week page. Paging is a pure view
// concern: the day-name buckets are reused for every page.
func (s *Session) SetPage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = ClampPage(page, TotalWeeks(s.start, s.end))
	return s.page
}

// SessionState is a point-in-time snapshot for serialization.
type SessionState struct {
	StartDate    time.Time                  `json:"start_date"`
	EndDate      time.Time                  `json:"end_date"`
	Schedule     *model.WeeklySchedule      `json:"schedule,omitempty"`
	Approvals    map[string][]ApprovalState `json:"approvals,omitempty"`
	Details      map[string]*model.Activity `json:"activity_details,omitempty"`
	Conversation *Conversation              `json:"conversation,omitempty"`
	Page         int                        `json:"page"`
	TotalWeeks   int                        `json:"total_weeks"`
	WeekStart    time.Time                  `json:"week_start"`
	Pending      int                        `json:"pending"`
	Approved     int                        `json:"approved"`
	Declined     int                        `json:"declined"`
}

// State snapshots the session. Entry lists and the conversation are
// copied so the snapshot can be marshalled without holding the lock.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := SessionState{
		StartDate:  s.start,
		EndDate:    s.end,
		Page:       s.page,
		TotalWeeks: TotalWeeks(s.start, s.end),
		WeekStart:  WeekStart(s.start, s.page),
	}
	if s.plan != nil {
		copied := *s.plan.Schedule
		copied.Entries = make(map[string][]model.ScheduleEntry, len(s.plan.Schedule.Entries))
		for day, entries := range s.plan.Schedule.Entries {
			copied.Entries[day] = append([]model.ScheduleEntry(nil), entries...)
		}
		state.Schedule = &copied
		state.Approvals = s.plan.ApprovalsByDay()
		state.Pending, state.Approved, state.Declined = s.plan.Counts()
	}
	if len(s.details) > 0 {
		details := make(map[string]*model.Activity, len(s.details))
		for id, a := range s.details {
			details[id] = a
		}
		state.Details = details
	}
	state.Conversation = s.conv.snapshot()
	return state
}
