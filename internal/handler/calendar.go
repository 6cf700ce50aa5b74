package handler

import (
	"log/slog"
	"net/http"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/store"
)

type CalendarHandler struct {
	calendar *store.CalendarStore
	logger   *slog.Logger
}

func NewCalendarHandler(cs *store.CalendarStore, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{calendar: cs, logger: logger}
}

// ListRange returns committed calendar entries between start and end
// (YYYY-MM-DD, end inclusive).
func (h *CalendarHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	start, err := parseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD format")
		return
	}
	end, err := parseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD format")
		return
	}

	entries, err := h.calendar.ListByDateRange(start, end.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("list calendar entries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list calendar entries")
		return
	}
	if entries == nil {
		entries = []model.CalendarEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListByChild returns one child's committed calendar.
func (h *CalendarHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	childID, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	entries, err := h.calendar.ListByChild(childID)
	if err != nil {
		h.logger.Error("list calendar entries", "child_id", childID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list calendar entries")
		return
	}
	if entries == nil {
		entries = []model.CalendarEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
