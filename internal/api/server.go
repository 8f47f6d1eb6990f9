// Package api exposes the read-only HTTP surface: queue listings, executor
// status, health, and metrics. It carries no crawl logic.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/pool"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

const queryTimeout = 3 * time.Second

// Server wires HTTP handlers to the queue store and the worker pool.
type Server struct {
	router chi.Router
	queue  store.QueueStore
	pool   *pool.Pool
	logger *zap.Logger
}

// NewServer constructs a Server with routes registered.
func NewServer(queue store.QueueStore, p *pool.Pool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queue:  queue,
		pool:   p,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/crawler-queue", func(r chi.Router) {
			r.Get("/", s.listQueue)
			r.Get("/status/{status}", s.listQueueByStatus)
		})
		r.Get("/crawler-executor/status", s.executorStatus)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listQueue handles GET /api/v1/crawler-queue/. It returns every queue item
// as a JSON array.
func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	items, err := s.queue.FindAll(ctx)
	if err != nil {
		s.logger.Error("list queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list queue items")
		return
	}
	writeJSON(w, http.StatusOK, itemsOrEmpty(items))
}

// listQueueByStatus handles GET /api/v1/crawler-queue/status/{status}.
// Unknown status values are 400s.
func (s *Server) listQueueByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := store.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	items, err := s.queue.FindByStatus(ctx, status)
	if err != nil {
		s.logger.Error("list queue by status failed",
			zap.String("status", string(status)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list queue items")
		return
	}
	writeJSON(w, http.StatusOK, itemsOrEmpty(items))
}

// executorStatus handles GET /api/v1/crawler-executor/status, reporting pool
// occupancy and the active-run snapshot.
func (s *Server) executorStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_count":     stats.ActiveRuns,
		"min_workers":      stats.MinWorkers,
		"max_workers":      stats.MaxWorkers,
		"backlog_size":     stats.BacklogDepth,
		"backlog_capacity": stats.BacklogCapacity,
		"active_crawlers":  s.pool.Registry().Snapshot(),
	})
}

func itemsOrEmpty(items []store.QueueItem) []store.QueueItem {
	if items == nil {
		return []store.QueueItem{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
