package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/falconadvisor/taxharvest/internal/domain"
)

// HarvestService defines the methods that the harvest handler requires from
// the engine.
type HarvestService interface {
	Analyze(ctx context.Context, portfolioID string) (domain.AnalysisReport, error)
	Execute(ctx context.Context, portfolioID, symbol, altSymbol string, reinvest bool) (domain.HarvestExecution, error)
}

// ExecutionReader provides read access to persisted harvest executions.
type ExecutionReader interface {
	GetByID(ctx context.Context, id string) (domain.HarvestExecution, error)
	ListByPortfolio(ctx context.Context, portfolioID string, opts domain.ListOpts) ([]domain.HarvestExecution, error)
}

// HarvestHandler serves harvest analysis and execution endpoints.
type HarvestHandler struct {
	service    HarvestService
	executions ExecutionReader
	logger     *slog.Logger
}

// NewHarvestHandler creates a HarvestHandler with the given collaborators.
func NewHarvestHandler(service HarvestService, executions ExecutionReader, logger *slog.Logger) *HarvestHandler {
	return &HarvestHandler{
		service:    service,
		executions: executions,
		logger:     logger,
	}
}

// Analyze produces the harvest opportunity report for a portfolio.
// GET /api/portfolios/{id}/harvest
func (h *HarvestHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	portfolioID := pathParam(r, "id")
	if portfolioID == "" {
		writeError(w, http.StatusBadRequest, "missing portfolio id")
		return
	}

	report, err := h.service.Analyze(r.Context(), portfolioID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: analyze failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// executeRequest is the JSON body for a harvest execution.
type executeRequest struct {
	Symbol    string `json:"symbol"`
	AltSymbol string `json:"alt_symbol,omitempty"`
	Reinvest  *bool  `json:"reinvest,omitempty"` // defaults to true
}

// executeResponse wraps the execution record, with an error note when the
// harvest ended in a degraded state.
type executeResponse struct {
	Execution domain.HarvestExecution `json:"execution"`
	Error     string                  `json:"error,omitempty"`
}

// Execute runs a sell-then-buy harvest for one opportunity in the portfolio.
// POST /api/portfolios/{id}/harvest
func (h *HarvestHandler) Execute(w http.ResponseWriter, r *http.Request) {
	portfolioID := pathParam(r, "id")
	if portfolioID == "" {
		writeError(w, http.StatusBadRequest, "missing portfolio id")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	reinvest := true
	if req.Reinvest != nil {
		reinvest = *req.Reinvest
	}

	exec, err := h.service.Execute(r.Context(), portfolioID, req.Symbol, req.AltSymbol, reinvest)
	if err != nil {
		h.writeExecuteError(w, r, portfolioID, req.Symbol, exec, err)
		return
	}

	writeJSON(w, http.StatusCreated, executeResponse{Execution: exec})
}

// writeExecuteError maps engine errors onto HTTP status codes. Partial
// executions still return the execution record so the operator can see which
// leg completed.
func (h *HarvestHandler) writeExecuteError(w http.ResponseWriter, r *http.Request, portfolioID, symbol string, exec domain.HarvestExecution, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no harvestable opportunity for "+symbol)
	case errors.Is(err, domain.ErrHarvestInProgress):
		writeError(w, http.StatusConflict, "harvest already in progress for "+symbol)
	case errors.Is(err, domain.ErrWashSaleViolation):
		writeError(w, http.StatusUnprocessableEntity, "wash-sale window is open for "+symbol)
	case errors.Is(err, domain.ErrNoAlternative):
		writeError(w, http.StatusUnprocessableEntity, "no replacement security available for "+symbol)
	case errors.Is(err, domain.ErrPartialExecution):
		writeJSON(w, http.StatusBadGateway, executeResponse{Execution: exec, Error: err.Error()})
	case errors.Is(err, domain.ErrBrokerTimeout), errors.Is(err, domain.ErrBrokerRejected):
		writeJSON(w, http.StatusBadGateway, executeResponse{Execution: exec, Error: err.Error()})
	default:
		h.logger.ErrorContext(r.Context(), "handler: execute failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "harvest execution failed")
	}
}

// listExecutionsResponse wraps the list executions response.
type listExecutionsResponse struct {
	Executions []domain.HarvestExecution `json:"executions"`
}

// ListExecutions returns harvest executions for a portfolio, newest first.
// GET /api/harvests?portfolio_id=...&limit=50&offset=0
func (h *HarvestHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		writeError(w, http.StatusBadRequest, "portfolio_id query parameter required")
		return
	}

	execs, err := h.executions.ListByPortfolio(r.Context(), portfolioID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list executions failed",
			slog.String("portfolio_id", portfolioID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	if execs == nil {
		execs = []domain.HarvestExecution{}
	}

	writeJSON(w, http.StatusOK, listExecutionsResponse{Executions: execs})
}

// GetExecution returns one harvest execution by its ID.
// GET /api/harvests/{id}
func (h *HarvestHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing execution id")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}

	writeJSON(w, http.StatusOK, exec)
}
