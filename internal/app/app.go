package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"chemvis/internal/config"
	apierrors "chemvis/internal/errors"
	"chemvis/internal/infrastructure"
	customMiddleware "chemvis/internal/middleware"
	"chemvis/internal/report"
	"chemvis/internal/services"
	"chemvis/internal/storage"
	handlers "chemvis/internal/transport/http"
	ws "chemvis/internal/websocket"
	"chemvis/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Router         *chi.Mux
	Server         *http.Server
	Store          storage.Store
	WebSocketHub   *ws.Hub // nil when websocket events are disabled
	DatasetService *services.DatasetService
	HealthService  *services.HealthService
	Metrics        *infrastructure.DatasetMetrics
	OTelProviders  *infrastructure.OTelProviders
	Logger         *slog.Logger
}

// New wires the application from cfg. The caller owns the returned
// application and must call Run or Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Int("history_capacity", cfg.Storage.Capacity))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromTelemetry(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateDatasetMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Store:         store,
		Metrics:       metrics,
		OTelProviders: otelProviders,
		Logger:        logger,
	}

	a.initializeServices()
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	// Interface values stay nil, not typed-nil, when the hub is disabled.
	var (
		publisher services.EventPublisher
		counter   services.ClientCounter
	)
	if a.Config.WebSocket.Enabled {
		a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)
		publisher = a.WebSocketHub
		counter = a.WebSocketHub
	}

	a.DatasetService = services.NewDatasetService(
		a.Store,
		report.NewRenderer(config.AppName),
		publisher,
		a.Metrics,
		a.OTelProviders.Tracer,
		a.Logger,
	)
	a.HealthService = services.NewHealthService(contracts.Version, contracts.BuildTime, a.Store, counter, a.Logger)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware that does not wrap the ResponseWriter, so the websocket
	// upgrade can still hijack the connection.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	if a.WebSocketHub != nil {
		r.With(
			apierrors.RecoveryMiddleware(errorHandler),
			customMiddleware.BasicAuth(a.Config.Auth, a.Logger),
		).Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

			// Probes stay reachable without credentials.
			handlers.NewHealthHandler(a.HealthService, a.Logger).Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.BasicAuth(a.Config.Auth, a.Logger))

				datasetHandler := handlers.NewDatasetHandler(a.DatasetService, a.Config.Server.MaxUploadBytes, a.Logger, errorHandler)
				r.Mount("/datasets", datasetHandler.Routes())
				datasetHandler.LegacyRoutes(r)
			})
		})

		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMiddleware.RequestIDHeader},
		ExposedHeaders:   []string{customMiddleware.RequestIDHeader, "Content-Disposition", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Run serves HTTP on the configured address until ctx is cancelled or the
// process receives SIGINT or SIGTERM, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if a.WebSocketHub != nil {
		g.Go(func() error {
			return a.WebSocketHub.Run(gctx)
		})
	}

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	return runErr
}

// Close releases the store and flushes telemetry
func (a *Application) Close(ctx context.Context) error {
	var errs []error

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "application shutdown finished with errors", slog.String("error", err.Error()))
		return err
	}

	a.Logger.InfoContext(ctx, "application shutdown complete",
		slog.Duration("shutdown_timeout", a.Config.Server.ShutdownTimeout),
		slog.Time("at", time.Now().UTC()))
	return nil
}
