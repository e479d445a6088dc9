// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rolewarden/rolewarden/internal/config"
	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/rolewarden/rolewarden/internal/identity"
	"github.com/rolewarden/rolewarden/internal/identity/jwt"
	identitypostgres "github.com/rolewarden/rolewarden/internal/identity/postgres"
	"github.com/rolewarden/rolewarden/internal/notifications"
	"github.com/rolewarden/rolewarden/internal/pkg/ctxlog"
	"github.com/rolewarden/rolewarden/internal/pkg/httputil"
	"github.com/rolewarden/rolewarden/internal/pkg/metrics"
	"github.com/rolewarden/rolewarden/internal/pkg/postgres"
	"github.com/rolewarden/rolewarden/internal/roles"
	rolespostgres "github.com/rolewarden/rolewarden/internal/roles/postgres"
	"github.com/rolewarden/rolewarden/internal/version"
)

// App represents the application instance.
type App struct {
	config          *config.Config
	logger          *slog.Logger
	db              *pgxpool.Pool
	server          *http.Server
	metricsServer   *http.Server
	identityService *identity.Service
	backgroundStop  context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	backgroundCtx, backgroundStop := context.WithCancel(context.Background())

	app := &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		backgroundStop: backgroundStop,
	}

	go app.collectDBMetrics(backgroundCtx)

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		backgroundStop()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	go app.purgeExpiredTokens(backgroundCtx)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.backgroundStop()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// purgeExpiredTokens periodically deletes refresh tokens whose expiry has
// passed. Without the sweep tokens that are never presented again would sit
// in the table forever.
func (a *App) purgeExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		purged, err := a.identityService.PurgeExpiredTokens(ctx)
		if err != nil {
			a.logger.Error("purge expired refresh tokens", "error", err)
		} else if purged > 0 {
			a.logger.Info("purged expired refresh tokens", "count", purged)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// registrationNotifier publishes an event when a new account is created.
type registrationNotifier struct {
	dispatcher *notifications.Dispatcher
}

func (n *registrationNotifier) OnUserCreated(ctx context.Context, user *domain.User) error {
	n.dispatcher.Publish(ctx, notifications.EventUserRegistered, map[string]string{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
	})
	return nil
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	sinks := []notifications.Sink{notifications.NewLogSink()}
	if a.config.Notifications.Webhook.Enabled {
		webhookSink, err := notifications.NewWebhookSink(notifications.WebhookConfig{
			URL:       a.config.Notifications.Webhook.URL,
			RateLimit: a.config.Notifications.Webhook.RateLimit,
			Client:    &http.Client{Timeout: a.config.Notifications.Webhook.Timeout},
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook sink: %w", err)
		}
		sinks = append(sinks, webhookSink)
	}
	dispatcher := notifications.NewDispatcher(sinks...)

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	}, identityRepo)
	identityService := identity.NewService(identityRepo, jwtAuth, &registrationNotifier{dispatcher: dispatcher})
	identityHandler := identity.NewHandler(identityService)
	a.identityService = identityService

	rolesRepo := rolespostgres.NewRepository(a.db)
	rolesService := roles.NewService(rolesRepo, dispatcher)
	rolesHandler := roles.NewHandler(rolesService, roles.HandlerConfig{
		ReasonDenylist:  a.config.Roles.ReasonDenylist,
		HistoryPageSize: a.config.Roles.HistoryPageSize,
		HistoryMaxLimit: a.config.Roles.HistoryMaxLimit,
	})

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			identityHandler.RegisterProtectedRoutes(r)

			// The role service re-checks the acting user against the store;
			// the middleware gate only rejects obvious non-admin traffic
			// early.
			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				rolesHandler.RegisterRoutes(r)
			})
		})
	})

	return r, nil
}

// EnsureAdmin provisions the bootstrap administrator if configured.
func (a *App) EnsureAdmin(ctx context.Context) error {
	identityRepo := identitypostgres.NewRepository(a.db)
	identityService := identity.NewService(identityRepo, nil, nil)
	return identityService.EnsureAdmin(ctx,
		a.config.Bootstrap.AdminEmail,
		a.config.Bootstrap.AdminPassword,
	)
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
