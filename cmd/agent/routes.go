package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/agent"
	"github.com/intelligent-ticket-agent/internal/config"
	"github.com/intelligent-ticket-agent/internal/jsonx"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// api is the operator surface. It consumes only the core's read APIs plus
// the two explicit operator actions (cleanup, processed-set clear).
type api struct {
	orch   *agent.Orchestrator
	store  knowledge.Store
	cfg    config.Config
	logger *zap.Logger
}

func newAPI(orch *agent.Orchestrator, store knowledge.Store, cfg config.Config, logger *zap.Logger) *api {
	return &api{orch: orch, store: store, cfg: cfg, logger: logger}
}

func (a *api) register(r *mux.Router) {
	r.HandleFunc("/api/tickets/process", a.processTicket).Methods(http.MethodPost)
	r.HandleFunc("/api/tickets/processed/clear", a.clearProcessed).Methods(http.MethodPost)
	r.HandleFunc("/api/agent/status", a.status).Methods(http.MethodGet)
	r.HandleFunc("/api/agent/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/api/knowledge/stats", a.knowledgeStats).Methods(http.MethodGet)
	r.HandleFunc("/api/knowledge/export", a.knowledgeExport).Methods(http.MethodGet)
	r.HandleFunc("/api/knowledge/cleanup", a.knowledgeCleanup).Methods(http.MethodPost)
	r.HandleFunc("/api/session/history", a.history).Methods(http.MethodGet)
	r.HandleFunc("/api/session/history/search", a.searchHistory).Methods(http.MethodGet)
}

type errorBody struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (a *api) processTicket(w http.ResponseWriter, r *http.Request) {
	var payload ticket.Payload
	if err := jsonx.DecodeBody(r.Body, &payload); err != nil {
		jsonx.WriteResponse(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Reason: "invalid JSON body"})
		return
	}

	result, err := a.orch.Process(r.Context(), payload)
	if err != nil {
		var perr *agent.PipelineError
		if errors.As(err, &perr) {
			jsonx.WriteResponse(w, statusFor(perr.Kind), errorBody{Kind: string(perr.Kind), Reason: perr.Error()})
			return
		}
		jsonx.WriteResponse(w, http.StatusInternalServerError, errorBody{Kind: "internal", Reason: err.Error()})
		return
	}
	jsonx.WriteResponse(w, http.StatusOK, result)
}

func statusFor(kind agent.FailureKind) int {
	switch kind {
	case agent.FailValidation:
		return http.StatusBadRequest
	case agent.FailDuplicate:
		return http.StatusConflict
	case agent.FailUpstreamTimeout:
		return http.StatusGatewayTimeout
	case agent.FailUpstreamUnavailable, agent.FailStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) clearProcessed(w http.ResponseWriter, _ *http.Request) {
	jsonx.WriteResponse(w, http.StatusOK, map[string]int{"cleared": a.orch.ClearProcessed()})
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	jsonx.WriteResponse(w, http.StatusOK, a.orch.Status())
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	jsonx.WriteResponse(w, http.StatusOK, map[string]bool{"healthy": a.orch.Healthy()})
}

func (a *api) knowledgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Stats(r.Context())
	if err != nil {
		a.logger.Error("knowledge stats failed", zap.Error(err))
		jsonx.WriteResponse(w, http.StatusServiceUnavailable, errorBody{Kind: "store_unavailable", Reason: err.Error()})
		return
	}
	jsonx.WriteResponse(w, http.StatusOK, stats)
}

func (a *api) knowledgeExport(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.Export(r.Context())
	if err != nil {
		a.logger.Error("knowledge export failed", zap.Error(err))
		jsonx.WriteResponse(w, http.StatusServiceUnavailable, errorBody{Kind: "store_unavailable", Reason: err.Error()})
		return
	}
	jsonx.WriteResponse(w, http.StatusOK, snap)
}

func (a *api) knowledgeCleanup(w http.ResponseWriter, r *http.Request) {
	days := a.cfg.KnowledgeCleanupDays
	if q := r.URL.Query().Get("older_than_days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			jsonx.WriteResponse(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Reason: "older_than_days must be a positive integer"})
			return
		}
		days = n
	}

	removed, err := a.store.Cleanup(r.Context(), days)
	if err != nil {
		a.logger.Error("knowledge cleanup failed", zap.Error(err))
		jsonx.WriteResponse(w, http.StatusServiceUnavailable, errorBody{Kind: "store_unavailable", Reason: err.Error()})
		return
	}
	jsonx.WriteResponse(w, http.StatusOK, map[string]int{"removed": removed})
}

func (a *api) history(w http.ResponseWriter, _ *http.Request) {
	jsonx.WriteResponse(w, http.StatusOK, a.orch.History().Recent())
}

func (a *api) searchHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonx.WriteResponse(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Reason: "missing query parameter q"})
		return
	}
	jsonx.WriteResponse(w, http.StatusOK, a.orch.History().Search(q))
}
