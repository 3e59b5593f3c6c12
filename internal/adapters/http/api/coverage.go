package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/judgeflow/internal/domain/coverage"
)

// CoverageDependencies reads floor coverage.
type CoverageDependencies interface {
	Coverage(ctx context.Context, floorID string) (coverage.Report, error)
}

// CoverageHandler handles coverage requests.
type CoverageHandler struct {
	deps CoverageDependencies
}

// NewCoverageHandler creates a new coverage handler.
func NewCoverageHandler(deps CoverageDependencies) *CoverageHandler {
	return &CoverageHandler{deps: deps}
}

// HandleCoverage handles GET /floors/{floorID}/coverage requests.
func (h *CoverageHandler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Coverage(r.Context(), chi.URLParam(r, "floorID"))
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
