// Package portal serves the Weighright pages and JSON API.
package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/mux"

	"github.com/weighright/portal/internal/auth"
	"github.com/weighright/portal/internal/content"
	"github.com/weighright/portal/internal/dashboard"
	"github.com/weighright/portal/internal/eligibility"
	"github.com/weighright/portal/internal/pricing"
	"github.com/weighright/portal/internal/profile"
	"github.com/weighright/portal/internal/web"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/database"
	"github.com/weighright/portal/pkg/interfaces"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/monitoring"
	"github.com/weighright/portal/pkg/types"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

const serviceName = "weighright-portal"

// Service implements the patient portal HTTP service
type Service struct {
	config *config.Config
	logger *logger.Logger
	router *mux.Router
	server *http.Server
	db     *database.DB

	catalog   *content.Catalog
	formatter *pricing.Formatter
	renderer  *web.Renderer

	store    *profile.Store
	journey  *profile.Journey
	admin    *dashboard.Admin
	roster   *dashboard.Roster
	auth     *auth.Authenticator
	sessions *eligibility.SessionStore
	promo    *PromoGate
	limiter  *auth.RateLimiter

	metrics *monitoring.MetricsCollector
	tracing *monitoring.TracingManager
	health  *monitoring.HealthManager
	janitor *Janitor

	trustedProxies []netip.Prefix

	notifier interfaces.NotificationService
	pause    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Service
type Option func(*Service)

// WithNotifier replaces the log-only notification service
func WithNotifier(n interfaces.NotificationService) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates a new portal service, opening the configured store and seeding it
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		config:  cfg,
		logger:  log,
		metrics: monitoring.NewMetricsCollector(serviceName),
		health:  monitoring.NewHealthManager(serviceName, Version, config.Seconds(cfg.Monitoring.HealthTimeout)),
		pause:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewNotificationService(log)
	}

	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}
	s.trustedProxies = trusted

	tracing, err := monitoring.NewTracingManager(ctx, &monitoring.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		Environment:    cfg.Tracing.Environment,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracing = tracing

	if s.catalog, err = content.Load(); err != nil {
		return nil, err
	}
	if s.formatter, err = pricing.NewFormatter(cfg.Portal.Locale); err != nil {
		return nil, err
	}
	if s.renderer, err = web.NewRenderer(); err != nil {
		return nil, err
	}

	profiles, clinicians, err := s.openRepositories(ctx)
	if err != nil {
		return nil, err
	}

	s.store = profile.NewStore(profiles, log, profile.WithListener(s.recordProfileChange))
	s.admin = dashboard.NewAdmin(s.store, s.catalog.Enrichment, cfg.Portal.DemoPatientID, s.formatter)
	s.journey = profile.NewJourney(s.store, s.notifier, log, profile.WithAdminThread(s.admin.Thread))
	s.roster = dashboard.NewRoster(clinicians, log)

	if s.auth, err = auth.NewAuthenticator(&cfg.Auth, log); err != nil {
		return nil, err
	}
	s.limiter = auth.NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
	s.sessions = eligibility.NewSessionStore(eligibility.DefaultGraph(),
		config.Seconds(cfg.Portal.WizardSessionTTL),
		eligibility.WithVerdictHook(s.metrics.RecordEligibilityVerdict))
	s.promo = NewPromoGate(cfg.Portal.PromoScrollThreshold, config.Seconds(cfg.Portal.WizardSessionTTL))

	if err := s.seed(ctx); err != nil {
		return nil, err
	}

	s.health.RegisterChecker("profiles", monitoring.NewPingHealthChecker("profile store", s.store))
	if s.db != nil {
		s.health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(s.db.DB))
	}

	s.janitor = NewJanitor(config.Seconds(cfg.Portal.JanitorInterval), log)
	s.registerSweeps()
	s.health.RegisterChecker("janitor", monitoring.HealthCheckFunc(s.janitor.Health))

	s.router = mux.NewRouter()
	s.setupRoutes(s.router)

	return s, nil
}

// openRepositories returns the profile and clinician stores for the configured driver
func (s *Service) openRepositories(ctx context.Context) (interfaces.ProfileRepository, interfaces.ClinicianRepository, error) {
	if s.config.Database.Driver == "memory" {
		repo := profile.NewMemoryRepository()
		return repo, repo, nil
	}

	db, err := database.NewConnection(&s.config.Database, s.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}
	opts, err := profile.SQLOptionsFor(&s.config.Database)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to configure document encryption: %w", err)
	}
	s.db = db
	repo := profile.NewSQLRepository(db, s.logger, opts...)
	return repo, repo, nil
}

// seed loads the demo records and the clinical team; stored records win
func (s *Service) seed(ctx context.Context) error {
	added, err := s.store.Seed(ctx, s.catalog.Patients)
	if err != nil {
		return fmt.Errorf("failed to seed patients: %w", err)
	}
	if err := s.roster.Seed(ctx, s.catalog.Team); err != nil {
		return fmt.Errorf("failed to seed clinical team: %w", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"patients_added": added,
		"driver":         s.config.Database.Driver,
	}).Info("Portal data seeded")
	return nil
}

func (s *Service) recordProfileChange(ctx context.Context, source string, before, after *types.PatientProfile) {
	s.metrics.RecordProfileUpdate(source)
	if before != nil && after != nil && before.Stage != after.Stage {
		s.metrics.RecordStageTransition(string(before.Stage), string(after.Stage))
	}
}

// Handler returns the fully wrapped HTTP handler
func (s *Service) Handler() http.Handler {
	return s.wrap(s.router)
}

// Start starts the HTTP server and the janitor
func (s *Service) Start(addr string) error {
	if err := s.janitor.Start(); err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.Seconds(s.config.Server.ReadTimeout),
		WriteTimeout: config.Seconds(s.config.Server.WriteTimeout),
		IdleTimeout:  config.Seconds(s.config.Server.IdleTimeout),
	}

	s.logger.WithField("addr", addr).Info("Starting portal service")
	return s.server.ListenAndServe()
}

// Stop gracefully stops the server and releases the store
func (s *Service) Stop(ctx context.Context) error {
	s.janitor.Stop()

	var firstErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("failed to shut down server: %w", err)
		}
	}
	if err := s.tracing.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
