package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/irrigation"
	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/resilience"
	"github.com/kheti-labs/irrigation-advisor/internal/store"
)

const maxBodyBytes = 1 << 20

// decisionService produces irrigation decisions.
type decisionService interface {
	Advise(ctx context.Context, req model.DecisionRequest) (*model.IrrigationDecision, error)
}

// farmStore is the part of store.Store the API reads and writes.
type farmStore interface {
	GetFarmingContext(ctx context.Context, farmerID string) (*model.FarmingContext, error)
	UpsertFarmingContext(ctx context.Context, fc *model.FarmingContext) error
	RecordIrrigation(ctx context.Context, entry *model.IrrigationHistoryEntry) error
	ListIrrigationHistory(ctx context.Context, filter store.HistoryFilter) ([]model.IrrigationHistoryEntry, error)
	Ping(ctx context.Context) error
}

type api struct {
	advisor  decisionService
	store    farmStore
	breakers *resilience.Breakers
	now      func() time.Time
}

// buildRouter wires the HTTP API. breakers may be nil.
func buildRouter(adv decisionService, st farmStore, breakers *resilience.Breakers, corsOrigins []string) http.Handler {
	a := &api{advisor: adv, store: st, breakers: breakers, now: time.Now}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", a.providers)
		r.Post("/irrigation/decisions", a.decide)
		r.Route("/farmers/{farmerID}", func(r chi.Router) {
			r.Get("/context", a.getContext)
			r.Put("/context", a.putContext)
			r.Get("/irrigations", a.listIrrigations)
			r.Post("/irrigations", a.recordIrrigation)
		})
	})

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			zap.L().Error("health: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) providers(w http.ResponseWriter, _ *http.Request) {
	states := map[string]string{}
	if a.breakers != nil {
		states = a.breakers.States()
	}
	writeJSON(w, http.StatusOK, map[string]any{"circuits": states})
}

func (a *api) decide(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[model.DecisionRequest](w, r)
	if !ok {
		return
	}
	d, err := a.advisor.Advise(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	zap.L().Info("decision served",
		zap.String("farmer_id", req.FarmerID),
		zap.String("crop", req.CropName),
		zap.String("recommendation", string(d.Recommendation)),
		zap.Float64("confidence", d.Confidence),
	)
	writeJSON(w, http.StatusOK, d)
}

func (a *api) getContext(w http.ResponseWriter, r *http.Request) {
	fc, err := a.store.GetFarmingContext(r.Context(), chi.URLParam(r, "farmerID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if fc == nil {
		writeError(w, http.StatusNotFound, "farming context not found")
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (a *api) putContext(w http.ResponseWriter, r *http.Request) {
	fc, ok := readJSON[model.FarmingContext](w, r)
	if !ok {
		return
	}
	fc.FarmerID = chi.URLParam(r, "farmerID")
	if err := checkProfile(&fc); err != nil {
		writeServiceError(w, err)
		return
	}
	fc.UpdatedAt = a.now().UTC()
	if err := a.store.UpsertFarmingContext(r.Context(), &fc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (a *api) listIrrigations(w http.ResponseWriter, r *http.Request) {
	filter := store.HistoryFilter{
		FarmerID: chi.URLParam(r, "farmerID"),
		CropName: r.URL.Query().Get("crop"),
	}
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		if days > 0 {
			filter.Since = a.now().AddDate(0, 0, -days)
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := a.store.ListIrrigationHistory(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []model.IrrigationHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) recordIrrigation(w http.ResponseWriter, r *http.Request) {
	entry, ok := readJSON[model.IrrigationHistoryEntry](w, r)
	if !ok {
		return
	}
	entry.FarmerID = chi.URLParam(r, "farmerID")
	entry.ID = ""
	if err := checkEntry(&entry, a.now().UTC()); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.store.RecordIrrigation(r.Context(), &entry); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps validation errors to 400 and logs everything else
// as a 500 without leaking details.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *irrigation.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
