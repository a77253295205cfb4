package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/hunter"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/source"
)

// apiStore is the read side of the store the API serves.
type apiStore interface {
	Ping(ctx context.Context) error
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	ListLeadSignals(ctx context.Context, leadID int64) ([]model.LeadSignal, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// huntRunner starts runs for POST /hunt/{source}.
type huntRunner interface {
	RunSource(ctx context.Context, src model.Source) (*model.RunResult, error)
	Running(name string) bool
}

// api holds the handler dependencies. Triggered runs use ctx, so they stop
// when the server shuts down.
type api struct {
	ctx     context.Context
	store   apiStore
	runner  huntRunner
	sources []model.Source
	wg      *sync.WaitGroup
}

func newRouter(a *api, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Get("/leads", a.listLeads)
	r.Get("/leads/{id}", a.getLead)
	r.Get("/runs", a.listRuns)
	r.Post("/hunt/{source}", a.triggerHunt)
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	filter := model.LeadFilter{Status: model.LeadStatus(q.Get("status")), Limit: limit}
	if v := q.Get("strength"); v != "" {
		s, ok := model.ParseStrength(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown strength")
			return
		}
		filter.Strength = s
	}

	leads, err := a.store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list leads failed")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (a *api) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}

	lead, err := a.store.GetLead(r.Context(), id)
	if err != nil {
		zap.L().Error("api: get lead", zap.Int64("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get lead failed")
		return
	}
	if lead == nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	signals, err := a.store.ListLeadSignals(r.Context(), id)
	if err != nil {
		zap.L().Error("api: list lead signals", zap.Int64("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list lead signals failed")
		return
	}
	if signals == nil {
		signals = []model.LeadSignal{}
	}
	writeJSON(w, http.StatusOK, leadDetail{Lead: lead, Signals: signals})
}

func (a *api) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	runs, err := a.store.ListRuns(r.Context(), model.RunFilter{
		Source: q.Get("source"),
		Status: model.RunStatus(q.Get("status")),
		Limit:  limit,
	})
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// triggerHunt starts a run of one source in the background.
func (a *api) triggerHunt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	src, ok := source.Find(a.sources, name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	if a.runner.Running(name) {
		writeError(w, http.StatusConflict, "source already running")
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res, err := a.runner.RunSource(a.ctx, src)
		switch {
		case errors.Is(err, hunter.ErrRunning):
			zap.L().Info("api: hunt skipped, already running", zap.String("source", name))
		case err != nil:
			zap.L().Error("api: hunt failed", zap.String("source", name), zap.Error(err))
		default:
			zap.L().Info("api: hunt complete",
				zap.String("source", name),
				zap.Int("leads_created", res.LeadsCreated),
				zap.Int("leads_merged", res.LeadsMerged),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"source": name,
	})
}

// parseLimit reads an optional positive limit, writing a 400 when invalid.
func parseLimit(w http.ResponseWriter, v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
