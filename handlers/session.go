package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/posturekit/posturebackend/models"
	"github.com/posturekit/posturebackend/session"
)

// SessionHandler exposes the report session coordinator and the processing
// result store to the capture frontend.
type SessionHandler struct {
	Coordinator *session.Coordinator
	Results     *session.ResultStore
}

func sideFromRequest(w http.ResponseWriter, r *http.Request) (models.Side, bool) {
	side, err := models.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", false
	}
	return side, true
}

func (sh *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := sh.Coordinator.StartNewIfNeeded()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sh.Coordinator.Current())
}

func (sh *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := sh.Coordinator.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (sh *SessionHandler) GetSideState(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sh.Coordinator.CurrentSideState(side))
}

type setPathRequest struct {
	Path string `json:"path"`
}

func (sh *SessionHandler) SetOriginal(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	var req setPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: path"})
		return
	}
	sh.Coordinator.StartNewIfNeeded()
	sh.Coordinator.SetOriginal(side, req.Path)
	writeJSON(w, http.StatusOK, sh.Coordinator.CurrentSideState(side))
}

func (sh *SessionHandler) SetCropped(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	var req setPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: path"})
		return
	}
	sh.Coordinator.SetCropped(side, req.Path)
	writeJSON(w, http.StatusOK, sh.Coordinator.CurrentSideState(side))
}

func (sh *SessionHandler) EnsureResultID(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	id := sh.Coordinator.EnsureResultID(side)
	writeJSON(w, http.StatusOK, map[string]string{"result_id": id})
}

func (sh *SessionHandler) MarkAutoReady(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	sh.Coordinator.MarkAutoReady(side)
	writeJSON(w, http.StatusOK, sh.Coordinator.CurrentSideState(side))
}

func (sh *SessionHandler) MarkFinalReady(w http.ResponseWriter, r *http.Request) {
	side, ok := sideFromRequest(w, r)
	if !ok {
		return
	}
	sh.Coordinator.MarkFinalReady(side)
	writeJSON(w, http.StatusOK, sh.Coordinator.CurrentSideState(side))
}

// PutResult writes the automatic-tier landmark set for a result id; the
// processing pipeline calls this once inference finishes.
func (sh *SessionHandler) PutResult(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	var set models.LandmarkSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid landmark set: " + err.Error()})
		return
	}
	sh.Results.Put(resultID, set)
	writeJSON(w, http.StatusNoContent, nil)
}

// PutFinalResult writes the user-corrected overlay for a result id.
func (sh *SessionHandler) PutFinalResult(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	var set models.LandmarkSet
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid landmark set: " + err.Error()})
		return
	}
	sh.Results.PutFinal(resultID, set)
	writeJSON(w, http.StatusNoContent, nil)
}

// GetResult returns the current (final-or-auto) landmark set for a result id.
func (sh *SessionHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")
	set, ok := sh.Results.CurrentFinal(resultID)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "result_not_found", "No landmark result stored for id "+resultID)
		return
	}
	writeJSON(w, http.StatusOK, set)
}
