package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/crewstore/crewstore/internal/backing"
	"github.com/crewstore/crewstore/internal/journal"
	"github.com/crewstore/crewstore/internal/logsink"
)

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorStatus maps internal error kinds to transport responses.
func errorStatus(err error) int {
	if errors.Is(err, journal.ErrUnknownField) {
		return http.StatusBadRequest
	}
	var zero *backing.WriteAffectedZeroError
	if errors.As(err, &zero) {
		return http.StatusConflict
	}
	var conn *backing.ConnectivityError
	if errors.As(err, &conn) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func storeError(w http.ResponseWriter, err error) {
	jsonError(w, errorStatus(err), err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}

// --- Memory ---

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.mem.ListKeys(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleLoadMemory(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, found, err := s.mem.Load(r.Context(), key)
	if err != nil {
		storeError(w, err)
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "key not found: "+key)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req struct {
		Value    any            `json:"value"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.mem.Save(r.Context(), key, req.Value, req.Metadata); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"key": key, "saved": true})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.mem.Delete(r.Context(), r.PathValue("key"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Predicate map[string]any `json:"predicate"`
		Limit     int            `json:"limit"`
	}
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	records, err := s.mem.Search(r.Context(), req.Predicate, req.Limit)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"results": records})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.mem.Clear(r.Context()); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"cleared": true})
}

// --- Task output journal ---

func (s *Server) handleLoadResults(w http.ResponseWriter, r *http.Request) {
	records, err := s.jrn.Load(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"results": records})
}

func (s *Server) handleAddResult(w http.ResponseWriter, r *http.Request) {
	var rec journal.Record
	if err := decodeJSON(r, &rec); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if rec.TaskID == "" {
		jsonError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	if err := s.jrn.Add(r.Context(), rec); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid task index: "+r.PathValue("index"))
		return
	}
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.jrn.Update(r.Context(), index, fields); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleClearResults(w http.ResponseWriter, r *http.Request) {
	if err := s.jrn.DeleteAll(r.Context()); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"cleared": true})
}

// --- State snapshots ---

func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.snaps.Load(r.Context(), r.URL.Query().Get("task_id"))
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	var stateData map[string]any
	if err := decodeJSON(r, &stateData); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.snaps.Save(r.Context(), taskID, stateData); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{"task_id": taskID, "saved": true})
}

func (s *Server) handleDeleteState(w http.ResponseWriter, r *http.Request) {
	if err := s.snaps.Delete(r.Context(), r.URL.Query().Get("task_id")); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"deleted": true})
}

// --- Log events ---

func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	var entry logsink.Entry
	if err := decodeJSON(r, &entry); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.logs.Log(r.Context(), entry); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]any{"logged": true})
}
