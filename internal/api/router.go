package api

import (
	"net/http"
	"time"

	"github.com/ayo6706/escrow-market/internal/api/handler"
	"github.com/ayo6706/escrow-market/internal/api/middleware"
	"github.com/ayo6706/escrow-market/internal/api/spec"
	"github.com/ayo6706/escrow-market/internal/config"
	"github.com/ayo6706/escrow-market/internal/idempotency"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/ayo6706/escrow-market/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Ledger   *service.LedgerService
	Catalog  *service.CatalogService
	Escrow   *service.EscrowService
	Disputes *service.DisputeService
	Promos   *service.PromoService
	Reviews  *service.ReviewService
	Deposits *service.DepositService
	Payouts  *service.PayoutService
	Webhooks *service.WebhookService
	Audit    *service.AuditService
	Drafts   *session.DraftStore
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	health    *handler.HealthHandler
	idemStore *idempotency.Store
	svc       Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, health *handler.HealthHandler, idemStore *idempotency.Store, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		health:    health,
		idemStore: idemStore,
		svc:       svc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	if len(api.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: api.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", middleware.BotKeyHeader},
			ExposedHeaders: []string{"X-Trace-ID", "X-Idempotent-Replay"},
			MaxAge:         300,
		}))
	}

	authHandler := handler.NewAuthHandler(api.svc.Ledger, api.cfg.JWTTTL)
	accountHandler := handler.NewAccountHandler(api.svc.Ledger, api.svc.Reviews)
	listingHandler := handler.NewListingHandler(api.svc.Catalog, api.svc.Escrow)
	draftHandler := handler.NewDraftHandler(api.svc.Drafts, api.svc.Catalog)
	transactionHandler := handler.NewTransactionHandler(api.svc.Escrow, api.svc.Disputes, api.svc.Reviews)
	disputeHandler := handler.NewDisputeHandler(api.svc.Disputes)
	promoHandler := handler.NewPromoHandler(api.svc.Promos)
	depositHandler := handler.NewDepositHandler(api.svc.Deposits)
	payoutHandler := handler.NewPayoutHandler(api.svc.Payouts)
	webhookHandler := handler.NewWebhookHandler(api.svc.Webhooks)
	auditHandler := handler.NewAuditHandler(api.svc.Audit)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/health/live", api.health.Live)
		r.Get("/health/ready", api.health.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

		r.With(middleware.BotKeyMiddleware(api.cfg.BotAPIKey)).Post("/v1/auth/token", authHandler.IssueToken)
		r.Post("/v1/webhooks/crypto-pay", webhookHandler.HandlePaymentWebhook)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/me", accountHandler.Me)
		r.Get("/v1/me/statement", accountHandler.Statement)
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)
		r.Get("/v1/accounts/{id}/reviews", accountHandler.ListReviews)

		r.Post("/v1/listings", listingHandler.CreateListing)
		r.Get("/v1/listings", listingHandler.ListListings)
		r.Get("/v1/listings/{id}", listingHandler.GetListing)
		r.Post("/v1/listings/{id}/deactivate", listingHandler.Deactivate)
		r.With(idem).Post("/v1/listings/{id}/purchase", listingHandler.Purchase)

		r.Get("/v1/listing-draft", draftHandler.GetDraft)
		r.Patch("/v1/listing-draft", draftHandler.PatchDraft)
		r.Delete("/v1/listing-draft", draftHandler.DeleteDraft)
		r.Post("/v1/listing-draft/submit", draftHandler.SubmitDraft)

		r.Get("/v1/transactions", transactionHandler.ListTransactions)
		r.Get("/v1/transactions/{id}", transactionHandler.GetTransaction)
		r.Post("/v1/transactions/{id}/disputes", transactionHandler.OpenDispute)
		r.Post("/v1/transactions/{id}/reviews", transactionHandler.RecordReview)
		r.Get("/v1/disputes/{id}", disputeHandler.GetDispute)

		r.With(idem).Post("/v1/promos/redeem", promoHandler.Redeem)

		r.With(idem).Post("/v1/deposits", depositHandler.CreateDeposit)
		r.Get("/v1/deposits/{id}", depositHandler.GetDeposit)
		r.Get("/v1/deposits/{id}/qr", depositHandler.DepositQR)

		r.With(idem).Post("/v1/payouts", payoutHandler.CreatePayout)
		r.Get("/v1/payouts/{id}", payoutHandler.GetPayout)

		// Admin routes. Services re-check the stored admin flag, so a stale
		// token cannot outlive a revoked role.
		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.Get("/disputes", disputeHandler.ListDisputes)
			r.Post("/disputes/{id}/resolve", disputeHandler.ResolveDispute)
			r.Post("/disputes/{id}/close", disputeHandler.CloseDispute)

			r.Post("/promos", promoHandler.CreatePromo)
			r.Post("/promos/{code}/deactivate", promoHandler.DeactivatePromo)

			r.With(idem).Put("/accounts/{id}/balance", accountHandler.SetBalance)
			r.Put("/accounts/{id}/blocked", accountHandler.SetBlocked)

			r.Get("/payouts/manual-review", payoutHandler.ListManualReviewPayouts)
			r.Post("/payouts/{id}/resolve", payoutHandler.ResolveManualReviewPayout)

			r.Get("/audit/{entity}/{id}", auditHandler.History)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondError(w, r, http.StatusNotFound, "route/not-found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondError(w, r, http.StatusMethodNotAllowed, "route/method-not-allowed", "method not allowed")
	})

	return r
}
