// Package api exposes the HTTP interface for the lead enrichment service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/config"
	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/metrics"
	"github.com/leadforge/leadforge/internal/pipeline"
	"github.com/leadforge/leadforge/internal/scoring"
	"github.com/leadforge/leadforge/internal/scrape"
)

// Server wires HTTP handlers to the pipeline, scraper, and stores.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	scraper  *scrape.Scraper
	engine   *scoring.Engine
	leads    lead.LeadStore
	results  lead.ResultStore
	logger   *zap.Logger
	cfg      config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	pl *pipeline.Pipeline,
	scraper *scrape.Scraper,
	engine *scoring.Engine,
	leads lead.LeadStore,
	results lead.ResultStore,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline: pl,
		scraper:  scraper,
		engine:   engine,
		leads:    leads,
		results:  results,
		logger:   logger,
		cfg:      cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.ServerTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pipeline/jobs", func(r chi.Router) {
			r.Post("/", s.runPipeline)
			r.Get("/{job_id}", s.getPipelineJob)
		})
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/", s.scrapeURL)
			r.Post("/batch", s.scrapeBatch)
		})
		r.Post("/campaigns/{campaign_id}/score", s.scoreCampaign)
		r.Route("/leads/{lead_id}", func(r chi.Router) {
			r.Get("/", s.getLead)
			r.Get("/score", s.getLeadScore)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type pipelineRequest struct {
	URLs       []string `json:"urls"`
	CampaignID string   `json:"campaign_id"`
	Industry   string   `json:"industry"`
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.pipeline.ProcessURLs(r.Context(), req.URLs, req.CampaignID, req.Industry)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getPipelineJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.pipeline.Job(jobID)
	if !ok {
		writeError(s.logger, w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

type scrapeRequest struct {
	URL      string `json:"url"`
	Industry string `json:"industry"`
}

func (s *Server) scrapeURL(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(s.logger, w, http.StatusBadRequest, "url is required")
		return
	}
	result := s.scraper.ScrapeURL(r.Context(), req.URL, req.Industry)
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"result": result})
}

type scrapeBatchRequest struct {
	URLs     []string `json:"urls"`
	Industry string   `json:"industry"`
}

func (s *Server) scrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req scrapeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		writeError(s.logger, w, http.StatusBadRequest, "at least one url is required")
		return
	}
	job := s.scraper.ScrapeBatch(r.Context(), req.URLs, req.Industry)
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) scoreCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaign_id")
	summary, err := s.engine.ScoreCampaignLeads(r.Context(), campaignID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "lead_id")
	ld, err := s.leads.GetLead(r.Context(), leadID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	payload := map[string]any{"lead": ld}
	if enrichment, err := s.leads.GetEnrichment(r.Context(), leadID); err == nil {
		payload["enrichment"] = enrichment
	}
	writeJSON(s.logger, w, http.StatusOK, payload)
}

func (s *Server) getLeadScore(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "lead_id")
	result, err := s.results.GetScoringResult(r.Context(), leadID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lead.ErrValidation):
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lead.ErrNotFound):
		writeError(s.logger, w, http.StatusNotFound, err.Error())
	case errors.Is(err, lead.ErrModelMissing):
		writeError(s.logger, w, http.StatusConflict, err.Error())
	default:
		writeError(s.logger, w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, time.Since(start))
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(zap.NewNop(), w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
