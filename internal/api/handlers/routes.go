package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/api/middleware"
)

// Routes wires the handlers into a mux. metrics may be nil.
func Routes(agent *AgentHandler, inv *InvestmentHandler, jobsH *JobsHandler, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.HandleFunc("POST /api/agent/trigger", agent.Trigger)
	mux.HandleFunc("GET /api/agent/actions", agent.ListActions)
	mux.HandleFunc("POST /api/agent/actions/{id}/resolve", agent.ResolveAction)

	mux.HandleFunc("POST /api/investment/recommendation", inv.Recommend)
	mux.HandleFunc("GET /api/investment/recommendation/latest", inv.Latest)
	mux.HandleFunc("GET /api/investment/recommendation/history", inv.History)

	if jobsH != nil {
		mux.HandleFunc("POST /api/cycles", jobsH.Enqueue)
		mux.HandleFunc("GET /api/jobs", jobsH.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", jobsH.GetJob)
	}
	return mux
}
