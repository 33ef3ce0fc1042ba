// Package server exposes the monitor over HTTP: point queries, the alert
// workflow, a WebSocket transition stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/stakewatch/exposure"
	"github.com/rustyeddy/stakewatch/monitor"
	"github.com/rustyeddy/stakewatch/risk"
	"github.com/rustyeddy/stakewatch/rules"
)

// Monitor is the query surface the server needs from monitor.Monitor.
type Monitor interface {
	RiskStatus(securityID string) (risk.Assessment, error)
	TrueExposure(securityID string) (exposure.Breakdown, error)
	BusinessDeadline(start time.Time, days int, jurisdiction string) rules.Deadline
	Securities() []string
	FeedStatus() monitor.FeedStatus
	Alert(securityID string) (risk.Alert, error)
	Acknowledge(ctx context.Context, securityID, actor string) (risk.Alert, error)
	Dismiss(ctx context.Context, securityID, actor, justification string) (risk.Alert, error)
	Resolve(ctx context.Context, securityID, actor, note string) (risk.Alert, error)
}

type Config struct {
	Addr     string
	Log      zerolog.Logger
	Monitor  Monitor
	Hub      *Hub
	Gatherer prometheus.Gatherer
}

type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	mon    Monitor
	hub    *Hub
	gather prometheus.Gatherer
}

func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		mon:    cfg.Monitor,
		hub:    cfg.Hub,
		gather: cfg.Gatherer,
	}
	if s.gather == nil {
		s.gather = prometheus.DefaultGatherer
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	if s.hub != nil {
		s.router.Get("/ws", s.hub.ServeWS)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/securities", s.handleSecurities)
		r.Get("/risk/{security}", s.handleRisk)
		r.Get("/exposure/{security}", s.handleExposure)
		r.Get("/deadline", s.handleDeadline)
		r.Get("/feed", s.handleFeed)
		r.Route("/alerts/{security}", func(r chi.Router) {
			r.Get("/", s.handleAlert)
			r.Post("/{action}", s.handleAlertAction)
		})
	})
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	feed := s.mon.FeedStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"feed":       feed.State,
		"securities": len(s.mon.Securities()),
	})
}

func (s *Server) handleSecurities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Securities())
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	a, err := s.mon.RiskStatus(chi.URLParam(r, "security"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type exposureResponse struct {
	exposure.Breakdown
	Summary string `json:"summary"`
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	b, err := s.mon.TrueExposure(chi.URLParam(r, "security"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exposureResponse{Breakdown: b, Summary: b.Summary()})
}

func (s *Server) handleDeadline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	days, err := strconv.Atoi(q.Get("days"))
	if err != nil || days < 0 || days > rules.MaxDeadlineDays {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("days must be an integer between 0 and %d", rules.MaxDeadlineDays),
		})
		return
	}
	j := strings.ToUpper(strings.TrimSpace(q.Get("jurisdiction")))
	if j == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jurisdiction is required"})
		return
	}
	writeJSON(w, http.StatusOK, s.mon.BusinessDeadline(start, days, j))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.FeedStatus())
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	a, err := s.mon.Alert(chi.URLParam(r, "security"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type alertRequest struct {
	Actor         string `json:"actor"`
	Justification string `json:"justification"`
	Note          string `json:"note"`
}

func (s *Server) handleAlertAction(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Actor) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor is required"})
		return
	}

	sec := chi.URLParam(r, "security")
	var (
		a   risk.Alert
		err error
	)
	switch risk.Action(chi.URLParam(r, "action")) {
	case risk.ActionAcknowledge:
		a, err = s.mon.Acknowledge(r.Context(), sec, req.Actor)
	case risk.ActionDismiss:
		a, err = s.mon.Dismiss(r.Context(), sec, req.Actor, req.Justification)
	case risk.ActionResolve:
		a, err = s.mon.Resolve(r.Context(), sec, req.Actor, req.Note)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("security", a.SecurityID).Str("actor", req.Actor).Str("state", string(a.State)).Msg("Alert updated")
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, monitor.ErrUnknownSecurity), errors.Is(err, risk.ErrNoAlert):
		status = http.StatusNotFound
	case errors.Is(err, risk.ErrJustificationRequired):
		status = http.StatusBadRequest
	case errors.Is(err, risk.ErrInvalidAlertAction):
		status = http.StatusConflict
	case errors.Is(err, monitor.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
