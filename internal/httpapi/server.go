package httpapi

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

	"github.com/hamed0406/healthmon/internal/alert"
	"github.com/hamed0406/healthmon/internal/domain"
	apimw "github.com/hamed0406/healthmon/internal/httpapi/middleware"
	"github.com/hamed0406/healthmon/internal/present"
)

const (
	statusRecentAlerts = 10
	defaultAlertLimit  = 50
)

// Engine is the read side of the scheduler.
type Engine interface {
	State() domain.EngineState
	Snapshot() *domain.HealthSnapshot
	Ledger() *alert.Ledger
}

type Options struct {
	Keys           []string
	AllowedOrigins []string
	RateLimitRPM   int
	RateLimitBurst int
}

type Server struct {
	Logger  *zap.Logger
	Engine  Engine
	Metrics http.Handler
}

func NewServer(l *zap.Logger, e Engine, metrics http.Handler) *Server {
	return &Server{Logger: l, Engine: e, Metrics: metrics}
}

func (s *Server) Router(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if len(o.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(o.RateLimitRPM, o.RateLimitBurst))
		r.Use(apimw.RequireKey(o.Keys))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/alerts", s.handleAlerts)
		r.Get("/api/alerts/open", s.handleOpenAlerts)
	})
	return r
}

// handleReady answers 200 once the engine is running and has a snapshot.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.Engine.State().IsRunning() || s.Engine.Snapshot() == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := present.Build(s.Engine.Snapshot(), s.Engine.State(), s.Engine.Ledger().Recent(statusRecentAlerts))
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.Engine.Ledger().Recent(limit))
}

func (s *Server) handleOpenAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Ledger().OpenAlerts())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the status API on addr until ctx is done, then shuts it down
// within the grace period.
func Serve(ctx context.Context, log *zap.Logger, addr string, h http.Handler, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("status_api_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
