package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mverner/kidplan/internal/database"
	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/store"
	"github.com/mverner/kidplan/internal/websocket"
)

type stubService struct {
	mu        sync.Mutex
	planCalls int
	planErr   error
	schedule  *model.WeeklySchedule
	alt       *model.ScheduleEntry
}

func (s *stubService) PlanWeek(context.Context, planner.PlanRequest) (*model.WeeklySchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planCalls++
	if s.planErr != nil {
		return nil, s.planErr
	}
	copied := *s.schedule
	entries := make(map[string][]model.ScheduleEntry, len(s.schedule.Entries))
	for day, list := range s.schedule.Entries {
		entries[day] = append([]model.ScheduleEntry(nil), list...)
	}
	copied.Entries = entries
	return &copied, nil
}

func (s *stubService) FindAlternative(context.Context, planner.AlternativeRequest) (*model.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alt == nil {
		return nil, nil
	}
	copied := *s.alt
	return &copied, nil
}

func (s *stubService) GetActivityDetails(context.Context, string) (*model.Activity, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestPlannerHandler(t *testing.T, svc planner.Service, db *sql.DB) (*PlannerHandler, *store.ChildStore) {
	t.Helper()
	children := store.NewChildStore(db)
	calendar := store.NewCalendarStore(db)
	settings := store.NewSettingsStore(db)
	hub := websocket.NewHub(testLogger())

	roster, err := children.List()
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	grid := planner.NewGrid(roster)
	return NewPlannerHandler(svc, calendar, children, grid, settings, hub, testLogger()), children
}

func stubSchedule() *model.WeeklySchedule {
	return &model.WeeklySchedule{
		Entries: map[string][]model.ScheduleEntry{
			"Monday": {{ChildID: 1, Day: "Monday", Time: "morning", ActivityID: "act-swim", ActivityName: "Swimming"}},
		},
		TotalActivities: 1,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	handler(rec, req)
	return rec
}

func TestGenerateWithoutChildren(t *testing.T) {
	svc := &stubService{schedule: stubSchedule()}
	h, _ := newTestPlannerHandler(t, svc, setupTestDB(t))

	rec := postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if svc.planCalls != 0 {
		t.Errorf("service called %d times, want validation before any call", svc.planCalls)
	}
}

func TestGenerateInvalidDates(t *testing.T) {
	svc := &stubService{schedule: stubSchedule()}
	h, _ := newTestPlannerHandler(t, svc, setupTestDB(t))

	rec := postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"June 2nd","end_date":"2025-06-08"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad start date: status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-08","end_date":"2025-06-02"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range: status = %d, want 400", rec.Code)
	}
}

func TestGenerateAndGetPlan(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)

	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}

	rec := postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Plan            planner.SessionState `json:"plan"`
		ShowExplanation bool                 `json:"show_explanation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Plan.Schedule == nil || resp.Plan.Schedule.TotalActivities != 1 {
		t.Errorf("plan = %+v", resp.Plan.Schedule)
	}
	if !resp.ShowExplanation {
		t.Error("first generation should surface the explanation")
	}

	getRec := httptest.NewRecorder()
	h.Get(getRec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	if getRec.Code != http.StatusOK {
		t.Errorf("get status = %d", getRec.Code)
	}
}

func TestFailedGenerateKeepsPriorPlan(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}

	rec := postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first generate status = %d", rec.Code)
	}

	svc.mu.Lock()
	svc.planErr = errors.New("planning service down")
	svc.mu.Unlock()

	rec = postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("failed generate status = %d, want 502", rec.Code)
	}

	// The prior plan is untouched and still served.
	getRec := httptest.NewRecorder()
	h.Get(getRec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("get after failed generate = %d, want prior plan intact", getRec.Code)
	}
	var state planner.SessionState
	if err := json.Unmarshal(getRec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Schedule == nil || state.Schedule.TotalActivities != 1 {
		t.Errorf("prior plan lost: %+v", state.Schedule)
	}

	// The prior session still accepts mutations.
	approveRec := httptest.NewRecorder()
	approveReq := httptest.NewRequest(http.MethodPost, "/api/plan/entries/Monday/0/approve", nil)
	approveReq.SetPathValue("day", "Monday")
	approveReq.SetPathValue("index", "0")
	h.Approve(approveRec, approveReq)
	if approveRec.Code != http.StatusOK {
		t.Errorf("approve after failed generate = %d", approveRec.Code)
	}
}

func TestGetPlanWithoutSession(t *testing.T) {
	svc := &stubService{schedule: stubSchedule()}
	h, _ := newTestPlannerHandler(t, svc, setupTestDB(t))

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelDiscardsPlan(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}

	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)

	rec := httptest.NewRecorder()
	h.Cancel(rec, httptest.NewRequest(http.MethodDelete, "/api/plan", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d, want 204", rec.Code)
	}

	getRec := httptest.NewRecorder()
	h.Get(getRec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	if getRec.Code != http.StatusNotFound {
		t.Errorf("get after cancel = %d, want 404", getRec.Code)
	}
}

func TestCommitRequiresPINWhenConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}

	// Configure a parent PIN through the settings handler.
	sh := NewSettingsHandler(store.NewSettingsStore(db), testLogger())
	pinRec := postJSON(t, sh.SetPIN, "/api/settings/pin", `{"pin":"4321"}`)
	if pinRec.Code != http.StatusOK {
		t.Fatalf("set pin status = %d", pinRec.Code)
	}

	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)

	rec := postJSON(t, h.Commit, "/api/plan/commit", `{"pin":"9999"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong pin: status = %d, want 403", rec.Code)
	}

	rec = postJSON(t, h.Commit, "/api/plan/commit", `{"pin":"4321"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("correct pin: status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCommitWithoutPINConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	child, err := children.Create("Ada", nil, "#ff8800")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)

	// Approve the single entry, then commit with no PIN at all.
	approveRec := httptest.NewRecorder()
	approveReq := httptest.NewRequest(http.MethodPost, "/api/plan/entries/Monday/0/approve", nil)
	approveReq.SetPathValue("day", "Monday")
	approveReq.SetPathValue("index", "0")
	h.Approve(approveRec, approveReq)
	if approveRec.Code != http.StatusOK {
		t.Fatalf("approve status = %d", approveRec.Code)
	}

	rec := postJSON(t, h.Commit, "/api/plan/commit", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d: %s", rec.Code, rec.Body.String())
	}
	var result planner.CommitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Committed != 1 || !result.Cleared {
		t.Errorf("result = %+v", result)
	}

	entries, err := store.NewCalendarStore(db).ListByChild(child.ID)
	if err != nil {
		t.Fatalf("list calendar: %v", err)
	}
	if len(entries) != 1 || entries[0].ActivityID != "act-swim" {
		t.Errorf("calendar = %+v", entries)
	}
}

func TestApproveUnknownDay(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}
	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/plan/entries/Funday/0/approve", nil)
	req.SetPathValue("day", "Funday")
	req.SetPathValue("index", "0")
	h.Approve(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRefineFlow(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{
		schedule: stubSchedule(),
		alt:      &model.ScheduleEntry{ChildID: 1, ActivityID: "act-dance", ActivityName: "Dance"},
	}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}
	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)

	rec := postJSON(t, h.RefineOpen, "/api/plan/refine", `{"day":"Monday","index":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("open status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.RefineRespond, "/api/plan/refine/respond", `{"reason":"cost"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("respond status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.RefineAccept, "/api/plan/refine/accept", ``)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}

	getRec := httptest.NewRecorder()
	h.Get(getRec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	var state planner.SessionState
	if err := json.Unmarshal(getRec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if got := state.Schedule.Entries["Monday"][0].ActivityID; got != "act-dance" {
		t.Errorf("entry = %s, want accepted alternative", got)
	}
	if state.Approved != 1 {
		t.Errorf("approved = %d, want 1", state.Approved)
	}
}

func TestRefineRespondUnknownReason(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}
	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-08"}`)
	postJSON(t, h.RefineOpen, "/api/plan/refine", `{"day":"Monday","index":0}`)

	rec := postJSON(t, h.RefineRespond, "/api/plan/refine/respond", `{"reason":"vibes"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSetWeekClampsPage(t *testing.T) {
	db := setupTestDB(t)
	svc := &stubService{schedule: stubSchedule()}
	h, children := newTestPlannerHandler(t, svc, db)
	if _, err := children.Create("Ada", nil, "#ff8800"); err != nil {
		t.Fatalf("create child: %v", err)
	}
	// Two-week range
	postJSON(t, h.Generate, "/api/plan/generate",
		`{"start_date":"2025-06-02","end_date":"2025-06-15"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/plan/week", strings.NewReader(`{"page":7}`))
	h.SetWeek(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Page       int `json:"page"`
		TotalWeeks int `json:"total_weeks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Page != 1 || resp.TotalWeeks != 2 {
		t.Errorf("page = %d, total = %d, want 1 and 2", resp.Page, resp.TotalWeeks)
	}
}
