package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/biasaudit/internal/app"
	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
)

const defaultListLimit = 20

// Option configures the evaluations handler.
type Option func(*EvaluationsHandler)

// WithDefaultListLimit sets the limit used when GET /evaluations has none.
func WithDefaultListLimit(n int) Option {
	return func(h *EvaluationsHandler) {
		if n > 0 {
			h.defaultLimit = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *EvaluationsHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// EvaluationsHandler serves the evaluation endpoints.
type EvaluationsHandler struct {
	deps         Dependencies
	defaultLimit int
	logger       logger.Logger
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps Dependencies, opts ...Option) *EvaluationsHandler {
	h := &EvaluationsHandler{
		deps:         deps,
		defaultLimit: defaultListLimit,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type submitResponse struct {
	ID        string       `json:"id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate"`
}

type listResponse struct {
	Reports []model.Report `json:"reports"`
	Count   int            `json:"count"`
}

// HandleSubmit handles POST /evaluations. A new submission is answered with
// 202, a repeated request_id with 200 and duplicate set.
func (h *EvaluationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_evaluation"
	req, apiErr := decodeRequest(op, w, r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	res, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		h.fail(r, w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, submitResponse{ID: res.ID, Status: model.StatusPending, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{ID: res.ID, Status: model.StatusPending})
}

// HandleEvaluate handles POST /evaluations/sync.
func (h *EvaluationsHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	req, apiErr := decodeRequest(op, w, r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	report, err := h.deps.Evaluate(r.Context(), req)
	if err != nil {
		h.fail(r, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleList handles GET /evaluations?limit=N.
func (h *EvaluationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_evaluations"
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q; must be a positive integer", raw)))
			return
		}
		limit = n
	}

	reports, err := h.deps.Reports(r.Context(), limit)
	if err != nil {
		h.fail(r, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Reports: reports, Count: len(reports)})
}

// HandleGet handles GET /evaluations/{id}.
func (h *EvaluationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_evaluation"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}

	report, err := h.deps.Report(r.Context(), id)
	if err != nil {
		h.fail(r, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *EvaluationsHandler) fail(r *http.Request, w http.ResponseWriter, op string, err error) {
	apiErr := WrapKind(op, kindOf(err), err)
	if status, _ := classify(apiErr); status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, apiErr)
}

func decodeRequest(op string, w http.ResponseWriter, r *http.Request) (service.EvaluationRequest, *Error) {
	var req service.EvaluationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return req, WrapKind(op, ErrBadRequest, fmt.Errorf("decode body: %w", err))
	}
	return req, nil
}
