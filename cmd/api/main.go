package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/fleet-maintenance/internal/api/http"
	"github.com/spec-kit/fleet-maintenance/internal/api/http/handlers"
	"github.com/spec-kit/fleet-maintenance/internal/auth"
	"github.com/spec-kit/fleet-maintenance/internal/config"
	"github.com/spec-kit/fleet-maintenance/internal/events"
	"github.com/spec-kit/fleet-maintenance/internal/observability"
	"github.com/spec-kit/fleet-maintenance/internal/persistence"
	"github.com/spec-kit/fleet-maintenance/internal/policy"
	"github.com/spec-kit/fleet-maintenance/internal/repository"
	"github.com/spec-kit/fleet-maintenance/internal/repository/memory"
	"github.com/spec-kit/fleet-maintenance/internal/sequence"
	"github.com/spec-kit/fleet-maintenance/internal/service"
	"github.com/spec-kit/fleet-maintenance/internal/worker"
)

type repositories struct {
	incidents repository.IncidentRepository
	inventory repository.InventoryRepository
	assets    repository.AssetRepository
	history   repository.StateHistoryRepository
	counters  repository.CounterRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	kernel, err := policy.FromPath(cfg.Kernel.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load policy", zap.Error(err), zap.String("file", cfg.Kernel.PolicyFile))
	}
	logger.Info("kernel ready",
		zap.String("policy_file", cfg.Kernel.PolicyFile),
		zap.String("timezone", kernel.Calendar.Location().String()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil {
		if err := pg.Migrate(ctx, cfg.Postgres, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg, logger)
	sequencer := buildSequencer(cfg.Kernel, repos.counters, redis, logger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartEventLog(dispatcher, logger)

	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Kernel:        kernel,
		IncidentRepo:  repos.incidents,
		InventoryRepo: repos.inventory,
		AssetRepo:     repos.assets,
		HistoryRepo:   repos.history,
		Sequencer:     sequencer,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	kernelService := service.NewKernelService(kernel, logger, nil)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)

	go worker.RunBreachScanner(ctx, workflow, cfg.Kernel.BreachScanInterval(), logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareOptions{
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.CORSAllowOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.Dependency{Name: "postgres", Pinger: pg, Optional: pg.PoolHandle() == nil},
			handlers.Dependency{Name: "redis", Pinger: redis, Optional: cfg.Kernel.SequenceBackend != config.SequenceRedis},
		),
		Incidents:      handlers.NewIncidentsHandler(workflow),
		Equipment:      handlers.NewEquipmentHandler(workflow),
		Kernel:         handlers.NewKernelHandler(kernelService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Rules:          kernel,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// buildRepositories picks Postgres when a pool exists and falls back to the
// in-memory store otherwise.
func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("no database configured; using in-memory repositories")
		store := memory.NewStore()
		return repositories{
			incidents: store.Incidents,
			inventory: store.Inventory,
			assets:    store.Assets,
			history:   store.History,
			counters:  store.Counters,
		}
	}
	return repositories{
		incidents: repository.NewIncidentRepository(pool),
		inventory: repository.NewInventoryRepository(pool),
		assets:    repository.NewAssetRepository(pool),
		history:   repository.NewStateHistoryRepository(pool),
		counters:  repository.NewCounterRepository(pool),
	}
}

func buildSequencer(cfg config.KernelConfig, counters repository.CounterRepository, redis *persistence.Redis, logger *zap.Logger) sequence.Sequencer {
	if cfg.SequenceBackend == config.SequenceRedis {
		if redis.Client == nil {
			logger.Fatal("SEQUENCE_BACKEND=redis requires REDIS_ADDR")
		}
		logger.Info("code sequences backed by redis")
		return sequence.NewRedis(redis.Client, redis.Key)
	}
	return sequence.NewPostgres(counters)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
