// Package api provides HTTP handlers and the main API server logic for Tranquil.
//
// It exposes RESTful endpoints for PSS-10 check-ins, breathing sessions,
// professional referrals and check-in reminders. The API integrates with the
// flow, store, messaging, scheduler and genai modules.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/Tranquil/internal/config"
	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/genai"
	"github.com/BTreeMap/Tranquil/internal/messaging"
	"github.com/BTreeMap/Tranquil/internal/metrics"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/recovery"
	"github.com/BTreeMap/Tranquil/internal/scheduler"
	"github.com/BTreeMap/Tranquil/internal/store"
	"github.com/BTreeMap/Tranquil/internal/twiliowhatsapp"
)

const (
	// DefaultServerAddress is used when no address is configured.
	DefaultServerAddress = ":8080"
	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	ReferralContact string
	CatalogPath     string
	Identity        IdentityProvider
	// SessionRetention is how long finished breathing sessions stay in memory.
	SessionRetention time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithReferralContact sets the phone number notified about high-stress check-ins.
func WithReferralContact(contact string) Option {
	return func(o *Opts) {
		o.ReferralContact = contact
	}
}

// WithCatalogPath sets the TOML catalog overlaying the default programs.
func WithCatalogPath(path string) Option {
	return func(o *Opts) {
		o.CatalogPath = path
	}
}

// WithSessionRetention sets how long finished breathing sessions stay readable.
func WithSessionRetention(d time.Duration) Option {
	return func(o *Opts) {
		o.SessionRetention = d
	}
}

// WithIdentityProvider replaces the default X-User-ID header identity.
func WithIdentityProvider(p IdentityProvider) Option {
	return func(o *Opts) {
		o.Identity = p
	}
}

// timerLister lists the tick sources behind running sessions.
type timerLister interface {
	ListActive() []models.TimerInfo
}

// Server holds all dependencies for the API server.
type Server struct {
	identity    IdentityProvider
	st          store.Store
	metrics     *metrics.Metrics
	timers      timerLister
	assessments *flow.AssessmentFlow
	sessions    *flow.SessionManager
	// reminders is nil when no messaging backend is configured.
	reminders *flow.ReminderFlow
}

// Run builds every module from its options, serves HTTP until SIGINT or
// SIGTERM, then shuts down gracefully. genaiOpts nil disables GenAI advice.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, twilioOpts []twiliowhatsapp.Option, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultServerAddress, SessionRetention: flow.DefaultDoneRetention}
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Identity == nil {
		cfg.Identity = HeaderIdentity{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	programs, err := catalog.Programs()
	if err != nil {
		return fmt.Errorf("failed to build breathing programs: %w", err)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	if err := seedProfessionals(ctx, st, catalog.Professionals); err != nil {
		return err
	}

	m := metrics.New()
	ticker := flow.NewSimpleTicker()
	defer ticker.Stop()
	sched := scheduler.NewScheduler()
	defer sched.Stop()

	var msgService messaging.Service
	twClient, err := twiliowhatsapp.NewClient(twilioOpts...)
	if err != nil {
		slog.Warn("Run: Twilio not configured, referrals and reminders disabled", "error", err)
	} else {
		msgService = messaging.NewTwilioService(twClient)
		defer msgService.Stop()
	}

	assessmentOpts := []flow.AssessmentOption{
		flow.WithAssessmentMetrics(m),
		flow.WithTrendWindow(catalog.TrendWindow),
	}
	if genaiOpts != nil {
		gaClient, err := genai.NewClient(genaiOpts...)
		if err != nil {
			slog.Warn("Run: GenAI client unavailable, using static advice", "error", err)
		} else {
			assessmentOpts = append(assessmentOpts, flow.WithAdvice(gaClient))
		}
	}
	if msgService != nil {
		referrals := msgService
		if repo, ok := st.(store.OutboxRepo); ok {
			outbox := messaging.NewOutboxService(msgService, repo, store.DefaultOutboxPollInterval)
			if err := outbox.Start(ctx); err != nil {
				slog.Warn("Run: outbox unavailable, sending referrals directly", "error", err)
			} else {
				defer outbox.Stop()
				referrals = outbox
			}
		}
		assessmentOpts = append(assessmentOpts, flow.WithReferral(referrals, cfg.ReferralContact))
	}

	sessions := flow.NewSessionManager(programs, st, ticker,
		flow.WithSessionMetrics(m),
		flow.WithCountdown(catalog.CountdownSeconds),
		flow.WithDoneRetention(cfg.SessionRetention),
	)
	defer sessions.Stop()

	s := &Server{
		identity:    cfg.Identity,
		st:          st,
		metrics:     m,
		timers:      ticker,
		assessments: flow.NewAssessmentFlow(st, assessmentOpts...),
		sessions:    sessions,
	}
	if msgService != nil {
		s.reminders = flow.NewReminderFlow(sched, msgService, st, m)
		rm := recovery.NewRecoveryManager(st)
		rm.RegisterRecoverable(s.reminders)
		if err := rm.RecoverAll(ctx); err != nil {
			slog.Warn("Run: recovery incomplete", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Tranquil API running", "addr", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Run: shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Run: server stopped")
	return nil
}

// seedProfessionals upserts the catalog professionals into the store.
func seedProfessionals(ctx context.Context, st store.Store, pros []models.Professional) error {
	for _, p := range pros {
		if err := st.SaveProfessional(ctx, p); err != nil {
			return fmt.Errorf("failed to seed professional %s: %w", p.ID, err)
		}
	}
	if len(pros) > 0 {
		slog.Info("seedProfessionals: catalog professionals saved", "count", len(pros))
	}
	return nil
}

// routes registers every endpoint and wraps the mux with request metrics.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", s.metrics.Handler())

	mux.HandleFunc("/assessment/questions", s.questionsHandler)
	mux.HandleFunc("/assessments", s.assessmentsHandler)
	mux.HandleFunc("/assessments/latest", s.latestAssessmentHandler)
	mux.HandleFunc("/assessments/trend", s.assessmentTrendHandler)

	mux.HandleFunc("/breathing/programs", s.programsHandler)
	mux.HandleFunc("/breathing/sessions", s.sessionsHandler)
	mux.HandleFunc("/breathing/sessions/{id}", s.sessionHandler)
	mux.HandleFunc("/breathing/sessions/{id}/{action}", s.sessionActionHandler)
	mux.HandleFunc("/breathing/history", s.breathingHistoryHandler)

	mux.HandleFunc("/professionals", s.professionalsHandler)

	mux.HandleFunc("/reminders", s.remindersHandler)
	mux.HandleFunc("/reminders/{id}", s.reminderHandler)

	mux.HandleFunc("/timers", s.timersHandler)
	return s.metrics.InstrumentHandler(mux)
}
