package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/linemk/rewards-wallet/internal/config"
	"github.com/linemk/rewards-wallet/internal/lib/logger/sl"
	"github.com/linemk/rewards-wallet/internal/lib/ratelimit"
	"github.com/linemk/rewards-wallet/internal/service"
	"github.com/linemk/rewards-wallet/internal/storage"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	Redis  *redis.Client // nil, если Redis не настроен
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	// реализуем подключение к БД через DSN
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	if cfg.Redis.Address != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		// лимитер работает в режиме fail-open, поэтому недоступный Redis не мешает запуску
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis is unavailable, rate limit will fail open", slog.String("address", cfg.Redis.Address), sl.Err(err))
		}
	}

	return app, nil
}

// Services собирает слои хранилища и сервисов поверх подключения к БД
func (a *App) Services() Services {
	userRepo := storage.NewUserRepository(a.DB)
	txRepo := storage.NewTransactionRepository(a.DB)
	referralRepo := storage.NewReferralRepository(a.DB)
	statsRepo := storage.NewStatsRepository(a.DB)
	ledgerRepo := storage.NewLedgerRepository(a.Logger, a.DB)

	cfg := a.Config
	gate := service.NewAccessGate(a.Logger, userRepo)

	return Services{
		Auth: service.NewAuthService(a.Logger, userRepo, service.AuthConfig{
			BotToken:        cfg.Telegram.BotToken,
			AdminTelegramID: cfg.Telegram.AdminTelegramID,
			MaxAuthAge:      cfg.Telegram.MaxAuthAge,
			JWTSecret:       cfg.JWT.Secret,
			TokenTTL:        time.Duration(cfg.JWT.TokenTTL) * time.Minute,
		}),
		Gate:   gate,
		Wallet: service.NewWalletService(a.Logger, userRepo, txRepo, referralRepo),
		Ledger: service.NewLedgerService(a.Logger, userRepo, ledgerRepo, gate, service.BonusPolicy{
			CardOnce:     cfg.Bonus.CardPolicy == config.BonusPolicyOnce,
			ReferralOnce: cfg.Bonus.ReferralPolicy == config.BonusPolicyOnce,
		}),
		Admin: service.NewAdminService(a.Logger, gate, userRepo, txRepo, statsRepo),
	}
}

// Limiter - лимитер для входа; nil, если Redis не настроен
func (a *App) Limiter() ratelimit.Limiter {
	if a.Redis == nil {
		return nil
	}
	return ratelimit.NewRedisLimiter(a.Redis, "ratelimit:auth", a.Config.RateLimit.Requests, a.Config.RateLimit.Window)
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("failed to close database", sl.Err(err))
	}
}
