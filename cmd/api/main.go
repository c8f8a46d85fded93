package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moodegoozy/sofra-core/api/routes"
	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/commission"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/settlement"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/metrics"
	"github.com/moodegoozy/sofra-core/pkg/migrate"
	"github.com/moodegoozy/sofra-core/pkg/outbox"
	"github.com/moodegoozy/sofra-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	auditRepo := audit.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	trustRepo := trust.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	auditSvc, err := audit.NewService(auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(dbClient, ledgerRepo, auditSvc, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	trustSvc, err := trust.NewService(dbClient, trustRepo, auditSvc, outboxSvc, cfg.Trust, settlementMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create trust service", err)
		os.Exit(1)
	}

	calculator, err := commission.NewCalculator(cfg.Commission)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission calculator", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, auditSvc, trustSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(
		dbClient,
		ordersRepo,
		ledgerRepo,
		trustRepo,
		trustSvc,
		calculator,
		auditSvc,
		outboxSvc,
		settlementMetrics,
		logg,
		cfg.Settlement.ConflictRetries,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	// Delivered orders settle in the same request that transitions them.
	ordersSvc.SetSettler(settlement.NewTrigger(settlementSvc))

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			Redis:          redisClient,
			OrdersService:  ordersSvc,
			Settlement:     settlementSvc,
			TrustService:   trustSvc,
			LedgerService:  ledgerSvc,
			AuditService:   auditSvc,
			MetricsHandler: promhttp.Handler(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
