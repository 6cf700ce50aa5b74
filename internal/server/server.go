package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mverner/kidplan/internal/handler"
	"github.com/mverner/kidplan/internal/middleware"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/planning"
	"github.com/mverner/kidplan/internal/store"
	ws "github.com/mverner/kidplan/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	childH        *handler.ChildHandler
	availabilityH *handler.AvailabilityHandler
	plannerH      *handler.PlannerHandler
	calendarH     *handler.CalendarHandler
	settingsH     *handler.SettingsHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, planningClient *planning.Client, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	childStore := store.NewChildStore(db)
	availabilityStore := store.NewAvailabilityStore(db)
	calendarStore := store.NewCalendarStore(db)
	settingsStore := store.NewSettingsStore(db)

	grid, err := loadGrid(childStore, availabilityStore)
	if err != nil {
		return nil, err
	}

	return &Server{
		db:            db,
		hub:           hub,
		childH:        handler.NewChildHandler(childStore, availabilityStore, grid, hub, logger.With("component", "children")),
		availabilityH: handler.NewAvailabilityHandler(grid, availabilityStore, hub, logger.With("component", "availability")),
		plannerH:      handler.NewPlannerHandler(planningClient, calendarStore, childStore, grid, settingsStore, hub, logger.With("component", "planner")),
		calendarH:     handler.NewCalendarHandler(calendarStore, logger.With("component", "calendar")),
		settingsH:     handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}, nil
}

// loadGrid builds the availability grid from the roster and overlays
// persisted toggles. Missing cells default to available.
func loadGrid(children *store.ChildStore, availability *store.AvailabilityStore) (*planner.Grid, error) {
	roster, err := children.List()
	if err != nil {
		return nil, err
	}
	grid := planner.NewGrid(roster)

	for _, c := range roster {
		if err := availability.EnsureDefaults(c.ID); err != nil {
			return nil, err
		}
	}

	cells, err := availability.Cells()
	if err != nil {
		return nil, err
	}
	for childID, days := range cells {
		for day, slots := range days {
			for slot, available := range slots {
				grid.Set(childID, day, slot, available)
			}
		}
	}
	return grid, nil
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Children
	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("DELETE /api/children/{id}", s.childH.Delete)
	mux.HandleFunc("GET /api/children/{id}/calendar", s.calendarH.ListByChild)

	// Availability grid
	mux.HandleFunc("GET /api/availability", s.availabilityH.Get)
	mux.HandleFunc("POST /api/availability/{id}/{day}/{slot}/toggle", s.availabilityH.ToggleSlot)
	mux.HandleFunc("POST /api/availability/{id}/{day}/toggle", s.availabilityH.ToggleDay)

	// Weekly plan — generation and refinement hit the AI service, so
	// they go through the rate limiter.
	mux.Handle("POST /api/plan/generate", s.aiLimited(s.plannerH.Generate))
	mux.HandleFunc("GET /api/plan", s.plannerH.Get)
	mux.HandleFunc("DELETE /api/plan", s.plannerH.Cancel)
	mux.HandleFunc("POST /api/plan/entries/{day}/{index}/approve", s.plannerH.Approve)
	mux.HandleFunc("POST /api/plan/entries/{day}/{index}/decline", s.plannerH.Decline)
	mux.HandleFunc("DELETE /api/plan/entries/{day}/{index}", s.plannerH.RemoveEntry)

	mux.HandleFunc("POST /api/plan/refine", s.plannerH.RefineOpen)
	mux.Handle("POST /api/plan/refine/respond", s.aiLimited(s.plannerH.RefineRespond))
	mux.HandleFunc("POST /api/plan/refine/accept", s.plannerH.RefineAccept)
	mux.HandleFunc("POST /api/plan/refine/decline", s.plannerH.RefineDecline)
	mux.HandleFunc("DELETE /api/plan/refine", s.plannerH.RefineClose)

	mux.Handle("POST /api/plan/regenerate", s.aiLimited(s.plannerH.Regenerate))

	mux.HandleFunc("GET /api/plan/week", s.plannerH.GetWeek)
	mux.HandleFunc("PUT /api/plan/week", s.plannerH.SetWeek)
	mux.HandleFunc("POST /api/plan/commit", s.plannerH.Commit)

	// Committed calendar
	mux.HandleFunc("GET /api/calendar", s.calendarH.ListRange)

	// Settings
	mux.HandleFunc("GET /api/settings/explanation", s.settingsH.GetExplanation)
	mux.HandleFunc("POST /api/settings/explanation/dismiss", s.settingsH.DismissExplanation)
	mux.HandleFunc("POST /api/settings/pin", s.settingsH.SetPIN)
	mux.HandleFunc("DELETE /api/settings/pin", s.settingsH.ClearPIN)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) aiLimited(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 20, time.Minute)(h)
}
