package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/statscope/pkg/batch"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
)

type Scraper interface {
	ScrapeEntity(ctx context.Context, entityID string, profiles map[stats.Platform]string) (*orchestrator.Result, error)
}

type BatchRunner interface {
	Trigger(ctx context.Context, trigger string) (batch.Report, error)
	Running() bool
}

type Store interface {
	GetEntity(ctx context.Context, id string) (*storage.EntityRecord, error)
	SetProfiles(ctx context.Context, id string, profiles map[stats.Platform]string) error
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

type Config struct {
	Scraper Scraper
	Batch   BatchRunner
	Store   Store
	// TriggerToken gates the manual batch trigger. Empty disables it.
	TriggerToken string
	Gatherer     prometheus.Gatherer
	Log          logrus.FieldLogger
}

type Server struct {
	cfg Config
	log logrus.FieldLogger
	// runs allows one background manual run at a time.
	runs chan struct{}
}

func New(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Server{cfg: cfg, log: log, runs: make(chan struct{}, 1)}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/entities/{id}/scrape", s.handleScrape)
		r.Get("/entities/{id}/status", s.handleStatus)
		r.Put("/entities/{id}/profiles", s.handleProfiles)
		r.Post("/batch/run", s.bearerAuth(s.handleBatchRun))
		r.Get("/batch/runs", s.handleBatchRuns)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	return r
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) bearerAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.TriggerToken == "" {
			http.Error(w, "manual trigger disabled", http.StatusServiceUnavailable)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.TriggerToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="statscope"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
