package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
	"github.com/mverner/kidplan/internal/store"
	"github.com/mverner/kidplan/internal/websocket"
)

type ChildHandler struct {
	children     *store.ChildStore
	availability *store.AvailabilityStore
	grid         *planner.Grid
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, as *store.AvailabilityStore, grid *planner.Grid, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{children: cs, availability: as, grid: grid, hub: hub, logger: logger}
}

type childRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Color       string `json:"color,omitempty"`
}

func (h *ChildHandler) parse(r *http.Request, w http.ResponseWriter) (string, *time.Time, string, bool) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", nil, "", false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return "", nil, "", false
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		d, err := parseDate(req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD format")
			return "", nil, "", false
		}
		dob = &d
	}

	if req.Color == "" {
		req.Color = "#4A90D9"
	}
	return req.Name, dob, req.Color, true
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, dob, color, ok := h.parse(r, w)
	if !ok {
		return
	}

	child, err := h.children.Create(name, dob, color)
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	// New children start fully available.
	if err := h.availability.EnsureDefaults(child.ID); err != nil {
		h.logger.Error("seed availability", "child_id", child.ID, "error", err)
	}
	h.grid.AddChild(child.ID)

	h.hub.Broadcast("child_created", map[string]any{"id": child.ID})
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.children.List()
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	name, dob, color, ok := h.parse(r, w)
	if !ok {
		return
	}

	existing, err := h.children.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check child")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	child, err := h.children.Update(id, name, dob, color)
	if err != nil {
		h.logger.Error("update child", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	h.hub.Broadcast("child_updated", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid child id")
		return
	}

	if err := h.children.Delete(id); err != nil {
		h.logger.Error("delete child", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}
	h.grid.RemoveChild(id)

	h.hub.Broadcast("child_deleted", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
