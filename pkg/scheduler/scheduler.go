// Package scheduler runs forecast jobs on a cron schedule and serves the
// health and metrics endpoints while doing so.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maistodos/credit-forecast/pkg/pipeline"
)

const DefaultSchedule = "0 6 * * *"

// JobRunner runs a batch of jobs.
type JobRunner interface {
	RunAll(ctx context.Context, jobs []pipeline.Job) ([]*pipeline.Result, error)
}

type Config struct {
	// Schedule is a standard five field cron expression, evaluated in UTC.
	Schedule   string
	ListenAddr string
	// RunOnStart runs the jobs once immediately.
	RunOnStart bool
}

type Scheduler struct {
	logger   log.FieldLogger
	runner   JobRunner
	jobs     []pipeline.Job
	cfg      Config
	schedule cron.Schedule

	mu       sync.Mutex
	running  bool
	stopping bool
	inflight sync.WaitGroup
	lastRun  time.Time
	lastErr  error
	next     time.Time
}

func New(logger log.FieldLogger, runner JobRunner, jobs []pipeline.Job, cfg Config) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}
	return &Scheduler{
		logger:   logger.WithField("component", "scheduler"),
		runner:   runner,
		jobs:     jobs,
		cfg:      cfg,
		schedule: schedule,
	}, nil
}

// Run blocks until ctx is done or the HTTP server fails, then waits for a
// run in progress to return.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	c := cron.NewWithLocation(time.UTC)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runJobs(ctx) }))
	s.setNext(s.schedule.Next(time.Now().UTC()))
	c.Start()
	s.logger.Infof("scheduled %d jobs with %q", len(s.jobs), s.cfg.Schedule)

	if s.cfg.RunOnStart {
		g.Go(func() error {
			s.runJobs(ctx)
			return nil
		})
	}

	server := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Router()}
	g.Go(func() error {
		s.logger.Infof("listening on %s", s.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		c.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	// cron.Stop does not wait for a job already running
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.inflight.Wait()

	s.logger.Info("scheduler has stopped")
	return err
}

// runJobs runs every job unless a previous run is still in progress or the
// scheduler is stopping.
func (s *Scheduler) runJobs(ctx context.Context) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping")
		return
	}
	s.running = true
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	_, err := s.runner.RunAll(ctx, s.jobs)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now().UTC()
	s.lastErr = err
	s.next = s.schedule.Next(s.lastRun)
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("scheduled run failed")
		return
	}
	s.logger.Info("scheduled run finished")
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = t
}

type requestLogger struct {
	log.FieldLogger
}

func (l *requestLogger) Print(v ...interface{}) {
	l.FieldLogger.Debug(v...)
}

// Router serves /metrics and /healthy.
func (s *Scheduler) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: &requestLogger{s.logger}}))
	router.Use(middleware.Recoverer)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	router.Get("/healthy", s.healthinessHandler)
	return router
}

type statusResponse struct {
	Status  string      `json:"status"`
	Details interface{} `json:"details,omitempty"`
}

type runStatus struct {
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRun   time.Time  `json:"nextRun"`
}

// healthinessHandler reports the process as healthy as long as it serves
// requests. Failed runs show up in the details only.
func (s *Scheduler) healthinessHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := runStatus{Running: s.running, NextRun: s.next}
	if !s.lastRun.IsZero() {
		lastRun := s.lastRun
		status.LastRun = &lastRun
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	writeResponseAsJSON(s.logger, w, http.StatusOK, statusResponse{Status: "ok", Details: status})
}

func writeResponseAsJSON(logger log.FieldLogger, w http.ResponseWriter, code int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		logger.WithError(err).Error("error writing response")
	}
}
