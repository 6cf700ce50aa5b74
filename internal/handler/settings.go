package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mverner/kidplan/internal/store"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, logger: logger}
}

func (h *SettingsHandler) GetExplanation(w http.ResponseWriter, r *http.Request) {
	shown, err := h.settings.ExplanationShown()
	if err != nil {
		h.logger.Error("read explanation flag", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shown": shown})
}

// DismissExplanation records the one-time planner explanation as seen.
func (h *SettingsHandler) DismissExplanation(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.MarkExplanationShown(); err != nil {
		h.logger.Error("write explanation flag", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write setting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shown": true})
}

type pinRequest struct {
	PIN     string `json:"pin"`
	Current string `json:"current,omitempty"`
}

// SetPIN sets or replaces the parent PIN. Replacing requires the
// current PIN.
func (h *SettingsHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.PIN) < 4 {
		writeError(w, http.StatusBadRequest, "PIN must be at least 4 digits")
		return
	}

	existing, err := h.settings.Get(store.KeyParentPINHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read PIN")
		return
	}
	if existing != "" {
		if bcrypt.CompareHashAndPassword([]byte(existing), []byte(req.Current)) != nil {
			writeError(w, http.StatusForbidden, "current PIN is incorrect")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}
	if err := h.settings.Set(store.KeyParentPINHash, string(hash)); err != nil {
		h.logger.Error("store parent pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pin_set": true})
}

// ClearPIN removes the parent PIN; the current PIN is required.
func (h *SettingsHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	existing, err := h.settings.Get(store.KeyParentPINHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read PIN")
		return
	}
	if existing == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(existing), []byte(req.PIN)) != nil {
		writeError(w, http.StatusForbidden, "PIN is incorrect")
		return
	}
	if err := h.settings.Delete(store.KeyParentPINHash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear PIN")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// verifyParentPIN reports whether pin unlocks the commit gate. With no
// PIN configured the gate is open.
func verifyParentPIN(settings *store.SettingsStore, pin string) (bool, error) {
	hash, err := settings.Get(store.KeyParentPINHash)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil, nil
}
