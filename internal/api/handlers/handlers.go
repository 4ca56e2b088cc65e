// Package handlers implements the HTTP endpoints for the spending agent, the
// investment orchestrator and the cycle job queue.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fiscal-pilot/internal/api/middleware"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/money"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
)

// SpendingService is the spending agent as seen by the API.
type SpendingService interface {
	RunCycle(ctx context.Context, subjectID string) *spending.CycleResult
	ResolveAction(ctx context.Context, actionID, subjectID string) bool
	RecentActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error)
}

// InvestmentService is the investment orchestrator as seen by the API.
type InvestmentService interface {
	Run(ctx context.Context, subjectID string) *investment.Result
	Latest(ctx context.Context, subjectID string) (*investment.Recommendation, error)
	History(ctx context.Context, subjectID string, limit int) ([]investment.Recommendation, error)
}

// ActionView is a persisted action with its amount rendered for display.
type ActionView struct {
	domain.PersistedAction
	AmountDisplay string `json:"amount_display,omitempty"`
}

// AgentHandler handles the spending agent endpoints.
type AgentHandler struct {
	agent    SpendingService
	currency string
	log      zerolog.Logger
}

// NewAgentHandler creates a new spending agent handler.
func NewAgentHandler(agent SpendingService, currency string, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{agent: agent, currency: currency, log: log}
}

// Trigger handles POST /api/agent/trigger. The cycle runs synchronously.
func (h *AgentHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	res := h.agent.RunCycle(r.Context(), subject)

	status := http.StatusOK
	if res.Status == domain.StatusError {
		status = http.StatusInternalServerError
	}
	middleware.WriteJSON(w, status, res)
}

// ListActions handles GET /api/agent/actions?unresolved=true&limit=N
func (h *AgentHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.SubjectFromContext(ctx)

	query := r.URL.Query()
	filter := domain.ActionFilter{}
	if v := query.Get("unresolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid unresolved value")
			return
		}
		filter.UnresolvedOnly = b
	}
	limit, ok := parseLimit(w, query.Get("limit"))
	if !ok {
		return
	}
	filter.Limit = limit

	actions, err := h.agent.RecentActions(ctx, subject, filter)
	if err != nil {
		h.log.Error().Err(err).Str("subject_id", subject).Msg("Failed to list actions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	views := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		v := ActionView{PersistedAction: a}
		if a.Amount != nil {
			v.AmountDisplay = money.Format(h.currency, *a.Amount)
		}
		views = append(views, v)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"actions": views,
		"count":   len(views),
	})
}

// ResolveAction handles POST /api/agent/actions/{id}/resolve
func (h *AgentHandler) ResolveAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := middleware.SubjectFromContext(ctx)
	actionID := r.PathValue("id")
	if actionID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Action ID is required")
		return
	}

	if !h.agent.ResolveAction(ctx, actionID, subject) {
		middleware.WriteError(w, http.StatusNotFound, "Action not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"action_id": actionID,
		"resolved":  true,
	})
}

// parseLimit reads an optional non-negative limit. It writes the error
// response itself and reports whether the caller may continue.
func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return 0, false
	}
	return n, true
}
