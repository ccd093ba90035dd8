package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/linemk/rewards-wallet/internal/app/handlers"
	"github.com/linemk/rewards-wallet/internal/config"
	"github.com/linemk/rewards-wallet/internal/lib/logger/handlers/urllog"
	"github.com/linemk/rewards-wallet/internal/lib/ratelimit"
	"github.com/linemk/rewards-wallet/internal/security/authmw"
	"github.com/linemk/rewards-wallet/internal/service"
)

type Services struct {
	Auth   service.AuthServiceInterface
	Gate   handlers.AdminChecker
	Wallet service.WalletServiceInterface
	Ledger service.LedgerServiceInterface
	Admin  service.AdminServiceInterface
}

// NewRouter собирает все маршруты API. limiter может быть nil - тогда вход не ограничивается.
func NewRouter(log *slog.Logger, cfg *config.Config, svc Services, limiter ratelimit.Limiter) http.Handler {
	router := chi.NewRouter()
	// настройка middleware
	if cfg.HTTPServer.BehindProxy {
		// адрес клиента берется из заголовков прокси только если прокси действительно стоит перед сервисом
		router.Use(middleware.RealIP)
	}
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// вход через Telegram и проверка флага администратора
	router.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(ratelimit.Middleware(log, limiter, cfg.RateLimit.Requests))
		}
		r.Post("/api/auth/telegram", handlers.TelegramAuthHandler(log, svc.Auth))
	})
	router.Post("/api/auth/check-admin", handlers.CheckAdminHandler(log, svc.Gate))

	router.Group(func(r chi.Router) {
		r.Use(authmw.New(cfg.JWT.Secret))

		r.Route("/api/wallet", func(r chi.Router) {
			r.Get("/", handlers.WalletHandler(log, svc.Wallet))
			r.Post("/withdraw", handlers.WithdrawHandler(log, svc.Ledger))
			r.Post("/topup", handlers.TopUpHandler(log, svc.Ledger))
			r.Post("/card-bonus", handlers.CardBonusHandler(log, svc.Ledger))
			r.Post("/referral-bonus", handlers.ReferralBonusHandler(log, svc.Ledger))
		})

		// права администратора проверяет сервис через AccessGate
		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/users", handlers.AdminUsersHandler(log, svc.Admin))
			r.Get("/transactions", handlers.AdminTransactionsHandler(log, svc.Admin))
			r.Get("/stats", handlers.AdminStatsHandler(log, svc.Admin))
			r.Post("/bonus", handlers.AdminBonusHandler(log, svc.Ledger))
			r.Put("/balance", handlers.AdminBalanceHandler(log, svc.Ledger))
		})
	})

	return router
}
