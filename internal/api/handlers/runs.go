package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wonny/tickersync/internal/api/response"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

const maxRunsLimit = 200

// RunsHandler serves the sync run log
type RunsHandler struct {
	runs ticker.RunLogRepository
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(runs ticker.RunLogRepository) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// List returns recent runs, newest first
// GET /api/runs?limit=20
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.GetRecent(r.Context(), limit)
	if err != nil {
		response.DatabaseError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*ticker.SyncRun{}
	}

	response.SuccessWithCount(w, r, runs, len(runs))
}

// Get returns one run
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, r, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ticker.ErrRunNotFound) {
			response.NotFound(w, r, "run not found")
			return
		}
		response.DatabaseError(w, r, err)
		return
	}

	response.Success(w, r, run)
}
