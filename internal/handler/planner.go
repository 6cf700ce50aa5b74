package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/store"
	"github.com/mverner/kidplan/internal/websocket"
)

// PlannerHandler owns the active planning session. A successful
// generation replaces the previous session; closing the old one makes
// sure results from its in-flight calls are dropped rather than
// applied. A failed generation leaves the previous session in place.
type PlannerHandler struct {
	svc      planner.Service
	calendar planner.Calendar
	children *store.ChildStore
	grid     *planner.Grid
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger

	mu      sync.Mutex
	session *planner.Session
}

func NewPlannerHandler(svc planner.Service, calendar planner.Calendar, cs *store.ChildStore, grid *planner.Grid, settings *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *PlannerHandler {
	return &PlannerHandler{
		svc:      svc,
		calendar: calendar,
		children: cs,
		grid:     grid,
		settings: settings,
		hub:      hub,
		logger:   logger,
	}
}

func (h *PlannerHandler) current() *planner.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func planErrStatus(err error) int {
	switch {
	case errors.Is(err, planner.ErrNoChildren):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrBusy), errors.Is(err, planner.ErrNoProposal):
		return http.StatusConflict
	case errors.Is(err, planner.ErrNoPlan), errors.Is(err, planner.ErrNoConversation), errors.Is(err, planner.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

type generateRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Constraints struct {
		MaxActivitiesPerChild    int   `json:"max_activities_per_child"`
		AvoidBackToBack          bool  `json:"avoid_back_to_back"`
		ScheduleSiblingsTogether bool  `json:"schedule_siblings_together"`
		AllowGaps                *bool `json:"allow_gaps"`
	} `json:"constraints"`
}

func (h *PlannerHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD format")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD format")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}

	constraints := planner.Constraints{
		MaxActivitiesPerChild:    req.Constraints.MaxActivitiesPerChild,
		AvoidBackToBack:          req.Constraints.AvoidBackToBack,
		ScheduleSiblingsTogether: req.Constraints.ScheduleSiblingsTogether,
		AllowGaps:                true,
	}
	if req.Constraints.AllowGaps != nil {
		constraints.AllowGaps = *req.Constraints.AllowGaps
	}

	children, err := h.children.List()
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load children")
		return
	}

	session := planner.NewSession(h.svc, h.calendar, children, h.grid, start, end, constraints,
		h.logger.With("component", "planner"), h.hub.Broadcast)

	// The new session only replaces the current one once generation has
	// succeeded. A failure clears nothing: the prior plan stays visible
	// and the caller can retry.
	if err := session.Generate(r.Context()); err != nil {
		// The service's own error message is surfaced verbatim.
		writeError(w, planErrStatus(err), err.Error())
		return
	}

	h.mu.Lock()
	old := h.session
	h.session = session
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	shown, err := h.settings.ExplanationShown()
	if err != nil {
		h.logger.Warn("read explanation flag", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":             session.State(),
		"show_explanation": !shown,
	})
}

func (h *PlannerHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	state := session.State()
	if state.Schedule == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Cancel discards the whole plan. The session is closed so any result
// still in flight lands nowhere.
func (h *PlannerHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	session := h.session
	h.session = nil
	h.mu.Unlock()

	if session != nil {
		session.Close()
		h.hub.Broadcast("plan_cancelled", nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlannerHandler) entryRef(w http.ResponseWriter, r *http.Request) (*planner.Session, string, int, bool) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return nil, "", 0, false
	}
	day := r.PathValue("day")
	if model.DayIndex(day) < 0 {
		writeError(w, http.StatusBadRequest, "unknown day")
		return nil, "", 0, false
	}
	index, ok := pathInt(r, "index")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid entry index")
		return nil, "", 0, false
	}
	return session, day, index, true
}

func (h *PlannerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	session, day, index, ok := h.entryRef(w, r)
	if !ok {
		return
	}
	state, err := session.ToggleApprove(day, index)
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "index": index, "state": state})
}

func (h *PlannerHandler) Decline(w http.ResponseWriter, r *http.Request) {
	session, day, index, ok := h.entryRef(w, r)
	if !ok {
		return
	}
	state, err := session.ToggleDecline(day, index)
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "index": index, "state": state})
}

func (h *PlannerHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	session, day, index, ok := h.entryRef(w, r)
	if !ok {
		return
	}
	if err := session.RemoveEntry(day, index); err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refineOpenRequest struct {
	Day   string `json:"day"`
	Index int    `json:"index"`
}

func (h *PlannerHandler) RefineOpen(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	var req refineOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if model.DayIndex(req.Day) < 0 {
		writeError(w, http.StatusBadRequest, "unknown day")
		return
	}
	conv, err := session.OpenRefinement(req.Day, req.Index)
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type refineRespondRequest struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *PlannerHandler) RefineRespond(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	var req refineRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	message := strings.TrimSpace(req.Message)
	if req.Reason != "" {
		text, ok := planner.ReasonText(req.Reason)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown reason")
			return
		}
		message = text
	}
	if message == "" {
		writeError(w, http.StatusBadRequest, "reason or message is required")
		return
	}

	conv, err := session.Respond(r.Context(), message)
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *PlannerHandler) RefineAccept(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	entry, err := session.AcceptProposal()
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry, "state": planner.StateApproved})
}

type refineDeclineRequest struct {
	Message string `json:"message,omitempty"`
}

func (h *PlannerHandler) RefineDecline(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	var req refineDeclineRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	conv, err := session.DeclineProposal(strings.TrimSpace(req.Message))
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// RefineClose abandons the conversation; the entry keeps whatever state
// it had before the conversation opened.
func (h *PlannerHandler) RefineClose(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	session.CloseRefinement()
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlannerHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	result, err := session.RegenerateDeclined(r.Context())
	if err != nil {
		writeError(w, planErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PlannerHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	state := session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"page":        state.Page,
		"total_weeks": state.TotalWeeks,
		"week_start":  state.WeekStart,
	})
}

type setWeekRequest struct {
	Page int `json:"page"`
}

func (h *PlannerHandler) SetWeek(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}
	var req setWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	page := session.SetPage(req.Page)
	state := session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"page":        page,
		"total_weeks": state.TotalWeeks,
		"week_start":  state.WeekStart,
	})
}

type commitRequest struct {
	PIN string `json:"pin,omitempty"`
}

// Commit persists the approved subset to the calendar for the currently
// viewed week. When a parent PIN is configured, the request must carry
// it. A mid-commit failure reports how far it got; committed entries
// stay committed and the remaining plan is kept for retry.
func (h *PlannerHandler) Commit(w http.ResponseWriter, r *http.Request) {
	session := h.current()
	if session == nil {
		writeError(w, http.StatusNotFound, "no plan has been generated")
		return
	}

	var req commitRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	ok, err := verifyParentPIN(h.settings, req.PIN)
	if err != nil {
		h.logger.Error("verify parent pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify PIN")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "parent PIN required")
		return
	}

	result, err := session.CommitApproved(r.Context())
	if err != nil {
		h.logger.Error("commit plan", "committed", result.Committed, "error", err)
		writeJSON(w, planErrStatus(err), map[string]any{
			"error":     err.Error(),
			"committed": result.Committed,
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
