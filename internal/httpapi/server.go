// Package httpapi exposes the health panel and analysis endpoints consumed
// by dashboard frontends.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mphinancial/terminal/internal/data/cache"
	"github.com/mphinancial/terminal/internal/pipeline"
	"github.com/mphinancial/terminal/internal/telemetry"
)

// Server wires the HTTP surface over the pipeline.
type Server struct {
	runner *pipeline.Runner
	health *telemetry.HealthSet
	store  *cache.Store
	http   *http.Server
}

func NewServer(listen string, runner *pipeline.Runner, health *telemetry.HealthSet,
	store *cache.Store, registry *prometheus.Registry) *Server {
	s := &Server{
		runner: runner,
		health: health,
		store:  store,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/providers", s.handleProviders).Methods(http.MethodGet)
	api.HandleFunc("/cache", s.handleCache).Methods(http.MethodGet)
	api.HandleFunc("/analyze/{ticker}", s.handleAnalyze).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.handleAnalyzeBatch).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Snapshots())
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	verdict, err := s.runner.Run(r.Context(), ticker)
	if err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("analyze failed")
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type batchRequest struct {
	Tickers []string `json:"tickers"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}
	writeJSON(w, http.StatusOK, s.runner.RunBatch(r.Context(), tickers))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
