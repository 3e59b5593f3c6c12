package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/judgeflow/internal/app"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
)

// generateRequest mirrors the OpenAPI schema for generate and preview.
type generateRequest struct {
	RequestID string   `json:"request_id"`
	JudgeIDs  []string `json:"judge_ids"`
}

func (g generateRequest) validate() error {
	if len(g.JudgeIDs) == 0 {
		return errors.New("missing judge_ids")
	}
	for _, id := range g.JudgeIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("judge_ids must not contain blank ids")
		}
	}
	return nil
}

type generateResponse struct {
	Status      string             `json:"status"`
	Duplicate   bool               `json:"duplicate"`
	RequestID   string             `json:"request_id,omitempty"`
	Message     string             `json:"message,omitempty"`
	Assignments []model.Assignment `json:"assignments"`
	Failures    []model.Failure    `json:"failures"`
	Summary     model.Summary      `json:"summary"`
}

type previewResponse struct {
	Message string             `json:"message"`
	Plan    model.GeneratePlan `json:"plan"`
}

// GenerateHandler handles plan generation and preview.
type GenerateHandler struct {
	deps   GenerateDependencies
	logger logger.Logger
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(deps GenerateDependencies, l logger.Logger) *GenerateHandler {
	return &GenerateHandler{deps: deps, logger: l}
}

// HandleGenerate handles POST /floors/{floorID}/generate requests.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	body, req, err := decodeGenerate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.deps.Generate(r.Context(), strings.TrimSpace(body.RequestID), req)
	if errors.Is(err, service.ErrDuplicateRequest) {
		writeJSON(w, http.StatusOK, generateResponse{
			Status:      "duplicate",
			Duplicate:   true,
			RequestID:   res.RequestID,
			Assignments: []model.Assignment{},
			Failures:    []model.Failure{},
		})
		return
	}
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}

	status := http.StatusOK
	if len(res.Assignments) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, generateResponse{
		Status:      "created",
		RequestID:   res.RequestID,
		Message:     res.Message,
		Assignments: nonNil(res.Assignments),
		Failures:    nonNil(res.Plan.Failures),
		Summary:     res.Plan.Summary,
	})
}

// HandlePreview handles POST /floors/{floorID}/preview requests.
func (h *GenerateHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	_, req, err := decodeGenerate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	plan, err := h.deps.Preview(r.Context(), req)
	if err != nil {
		failWith(h.logger, w, r, err)
		return
	}
	plan.Created = nonNil(plan.Created)
	plan.Failures = nonNil(plan.Failures)
	writeJSON(w, http.StatusOK, previewResponse{Message: plan.Message(), Plan: plan})
}

func decodeGenerate(r *http.Request) (generateRequest, model.GenerateRequest, error) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return body, model.GenerateRequest{}, fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return body, model.GenerateRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := body.validate(); err != nil {
		return body, model.GenerateRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return body, model.GenerateRequest{
		FloorID:  chi.URLParam(r, "floorID"),
		JudgeIDs: body.JudgeIDs,
	}, nil
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
