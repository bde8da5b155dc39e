package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sumandas0/querygate/config"
	"github.com/sumandas0/querygate/internal/api"
	"github.com/sumandas0/querygate/internal/cache"
	"github.com/sumandas0/querygate/internal/core"
	"github.com/sumandas0/querygate/internal/health"
	"github.com/sumandas0/querygate/internal/integration"
	"github.com/sumandas0/querygate/internal/lock"
	"github.com/sumandas0/querygate/internal/store/postgres"
	"github.com/sumandas0/querygate/internal/store/typesense"
)

var (
	// Build-time variables (set via ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "querygate",
		Short: "Search request normalization gateway",
		Long:  "A gateway that validates and normalizes search requests against per-index field catalogs before handing them to the search engine.",
		RunE:  runServer,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("querygate\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
			fmt.Printf("Build Time: %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE:  runMigrations,
	}
	migrateCmd.Flags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close()

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_time", buildTime).
		Msg("starting querygate")

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      app.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverChan := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.GetServerAddress()).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverChan:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server shutdown completed")
	return nil
}

func runMigrations(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	registry, err := postgres.NewPostgresRegistry(cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer registry.Close()

	migrator := postgres.NewMigrator(registry.GetPool())
	if err := migrator.Run(context.Background()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("database migrations completed")
	return nil
}

// Application holds all components of the gateway.
type Application struct {
	cfg           *config.Config
	registry      *postgres.PostgresRegistry
	searchEngine  *typesense.TypesenseEngine
	cacheManager  *cache.Manager
	lockManager   *lock.IndexLockManager
	engine        *core.Engine
	features      *integration.AdvancedFeaturesManager
	healthChecker *health.HealthChecker
	router        *api.Router
}

// NewApplication creates and initializes a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	app := &Application{cfg: cfg}

	features, err := integration.NewAdvancedFeaturesManager(integration.AdvancedFeaturesConfig{
		Tracing:        cfg.Tracing,
		Logging:        cfg.Logging,
		Metrics:        cfg.Metrics,
		CircuitBreaker: cfg.CircuitBreaker,
		Retry:          cfg.Retry,
		RateLimit:      cfg.RateLimit,
		Sanitizer:      cfg.Sanitizer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize advanced features: %w", err)
	}
	app.features = features

	registry, err := postgres.NewPostgresRegistry(cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL registry: %w", err)
	}
	app.registry = registry

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := registry.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	log.Info().Msg("PostgreSQL connection established")

	if cfg.Database.MigrateOnStart {
		migrator := postgres.NewMigrator(registry.GetPool())
		if err := migrator.Run(ctx); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		log.Info().Msg("database migrations completed")
	}

	searchEngine, err := typesense.NewTypesenseEngine(cfg.Search.URL, cfg.Search.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Typesense engine: %w", err)
	}
	searchEngine.SetObservability(features.GetObservability())
	app.searchEngine = searchEngine

	if err := searchEngine.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ping Typesense, continuing anyway")
	} else {
		log.Info().Msg("Typesense connection established")
	}

	cacheManager := cache.NewManager(registry, cfg.Cache.TTL)
	cacheManager.StartCleanupRoutine(context.Background(), cfg.Cache.CleanupInterval)
	app.cacheManager = cacheManager

	lockManager := lock.NewIndexLockManager()
	app.lockManager = lockManager

	engine := core.NewEngine(registry, searchEngine, cacheManager, lockManager)
	engine.SetObservability(features.GetObservability())
	engine.SetResilience(features.GetResilience())
	engine.SetSanitizer(features.GetSecurity().GetSanitizer())
	app.engine = engine

	healthChecker := health.NewHealthChecker(5 * time.Second)
	healthChecker.RegisterComponent("registry", health.CreateRegistryHealthCheck(registry))
	healthChecker.RegisterComponent("engine", health.CreateEngineHealthCheck(searchEngine))
	healthChecker.StartPeriodicChecks(context.Background(), 30*time.Second)
	app.healthChecker = healthChecker

	router := api.NewRouter(engine, healthChecker)
	router.SetAdvancedFeatures(features)
	app.router = router

	log.Info().Msg("application initialization completed")
	return app, nil
}

// Handler returns the HTTP handler for the application
func (app *Application) Handler() http.Handler {
	return app.router.SetupRoutes()
}

// Close gracefully closes all application components
func (app *Application) Close() error {
	var errs []error

	if app.searchEngine != nil {
		if err := app.searchEngine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("search engine close failed: %w", err))
		}
	}

	if app.registry != nil {
		if err := app.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry close failed: %w", err))
		}
	}

	if app.features != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.features.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("features shutdown failed: %w", err))
		}
	}

	if len(errs) > 0 {
		for _, err := range errs {
			log.Error().Err(err).Msg("component close failed")
		}
		return fmt.Errorf("application close failed with %d errors", len(errs))
	}

	return nil
}
