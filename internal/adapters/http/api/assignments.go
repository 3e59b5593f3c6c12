package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/judgeflow/pkg/logger"
)

type submitRequest struct {
	Scores map[string]int `json:"scores"`
}

// AssignmentHandler handles submit and cancel.
type AssignmentHandler struct {
	deps   AssignmentDependencies
	logger logger.Logger
}

// NewAssignmentHandler creates a new assignment handler.
func NewAssignmentHandler(deps AssignmentDependencies, l logger.Logger) *AssignmentHandler {
	return &AssignmentHandler{deps: deps, logger: l}
}

// HandleSubmit handles POST /assignments/{assignmentID}/submit requests.
// The body is optional.
func (h *AssignmentHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	a, err := h.deps.Submit(r.Context(), chi.URLParam(r, "assignmentID"), body.Scores)
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleCancel handles DELETE /assignments/{assignmentID} requests.
func (h *AssignmentHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Cancel(r.Context(), chi.URLParam(r, "assignmentID")); err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
