package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moodegoozy/sofra-core/api/controllers"
	"github.com/moodegoozy/sofra-core/api/middleware"
	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/settlement"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/redis"
)

// RouterParams bundle everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	Redis          *redis.Client
	OrdersService  orders.Service
	Settlement     settlement.Service
	TrustService   trust.Service
	LedgerService  ledger.Service
	AuditService   audit.Service
	MetricsHandler http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, p.Redis))
	})

	if p.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", p.MetricsHandler)
	}

	// A nil *redis.Client must stay a nil interface so the middleware's
	// missing-store bypass works.
	var idemStore redis.IdempotencyStore
	if p.Redis != nil {
		idemStore = p.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(p.OrdersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(p.OrdersService, logg))
			r.Post("/{orderId}/transition", controllers.TransitionOrder(p.OrdersService, logg))
			r.Post("/{orderId}/settle", controllers.SettleOrder(p.Settlement, logg))
		})

		r.Route("/restaurants/{restaurantId}", func(r chi.Router) {
			r.Post("/trust", controllers.CreateTrustRecord(p.TrustService, logg))
			r.Get("/trust", controllers.GetTrustStatus(p.TrustService, logg))
			r.Get("/trust/events", controllers.ListTrustEvents(p.TrustService, logg))
			r.Post("/trust/clear-suspension", controllers.ClearSuspension(p.TrustService, logg))
			r.Post("/trust-signals", controllers.ApplyTrustSignal(p.TrustService, logg))
		})

		r.Route("/ledger/accounts", func(r chi.Router) {
			r.Get("/", controllers.FindLedgerAccount(p.LedgerService, logg))
			r.Get("/{accountId}/balance", controllers.GetLedgerBalance(p.LedgerService, logg))
			r.Get("/{accountId}/transactions", controllers.ListLedgerTransactions(p.LedgerService, logg))
			r.Post("/{accountId}/adjust", controllers.AdjustLedger(p.LedgerService, logg))
		})

		r.Get("/audit", controllers.ListAudit(p.AuditService, logg))
	})

	return r
}
