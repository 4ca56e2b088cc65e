package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fiscal-pilot/internal/api/middleware"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// InvestmentHandler handles the recommendation endpoints.
type InvestmentHandler struct {
	orchestrator InvestmentService
	log          zerolog.Logger
}

// NewInvestmentHandler creates a new investment handler.
func NewInvestmentHandler(o InvestmentService, log zerolog.Logger) *InvestmentHandler {
	return &InvestmentHandler{orchestrator: o, log: log}
}

// Recommend handles POST /api/investment/recommendation
func (h *InvestmentHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	res := h.orchestrator.Run(r.Context(), subject)

	status := http.StatusOK
	if res.Status == domain.StatusError {
		status = http.StatusInternalServerError
	}
	middleware.WriteJSON(w, status, res)
}

// Latest handles GET /api/investment/recommendation/latest
func (h *InvestmentHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.SubjectFromContext(ctx)

	rec, err := h.orchestrator.Latest(ctx, subject)
	if err != nil {
		h.log.Error().Err(err).Str("subject_id", subject).Msg("Failed to load latest recommendation")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load recommendation")
		return
	}
	if rec == nil {
		middleware.WriteError(w, http.StatusNotFound, "No recommendation yet")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rec)
}

// History handles GET /api/investment/recommendation/history?limit=N
func (h *InvestmentHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.SubjectFromContext(ctx)

	limit, ok := parseLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	recs, err := h.orchestrator.History(ctx, subject, limit)
	if err != nil {
		h.log.Error().Err(err).Str("subject_id", subject).Msg("Failed to load recommendation history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load recommendations")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}
