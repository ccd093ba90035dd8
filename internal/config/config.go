package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// политики начисления бонусов
const (
	BonusPolicyOnce       = "once"
	BonusPolicyRepeatable = "repeatable"
)

type Config struct {
	Env        string           `yaml:"env" env:"APP_ENV" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Bonus      BonusConfig      `yaml:"bonus"`
	Redis      RedisConfig      `yaml:"redis"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	CORS       CORSConfig       `yaml:"cors"`
	Migrations MigrationsConfig `yaml:"migrations"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// BehindProxy включает разбор X-Forwarded-For / X-Real-IP. Без прокси заголовки игнорируются.
	BehindProxy bool `yaml:"behind_proxy" env:"HTTP_BEHIND_PROXY" env-default:"false"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env:"DB_NAME" env-required:"true"`
	SSLMode  string `yaml:"ssl_mode" env-default:"disable"`
}

// JWTConfig настройка сессионных токенов
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"` // минуты
}

// TelegramConfig параметры проверки Telegram Login Widget.
// Пустой BotToken не ломает запуск: проверка подписи просто никогда не проходит.
type TelegramConfig struct {
	BotToken        string        `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	AdminTelegramID int64         `yaml:"admin_telegram_id" env:"ADMIN_TELEGRAM_ID"`
	MaxAuthAge      time.Duration `yaml:"max_auth_age" env-default:"24h"`
}

// BonusConfig политики повторного начисления бонусов
type BonusConfig struct {
	CardPolicy     string `yaml:"card_policy" env:"BONUS_CARD_POLICY" env-default:"once"`
	ReferralPolicy string `yaml:"referral_policy" env:"BONUS_REFERRAL_POLICY" env-default:"once"`
}

// RedisConfig - если адрес пустой, rate limit отключен
type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests" env-default:"10"`
	Window   time.Duration `yaml:"window" env-default:"1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env-default:"*"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// DatabaseDSN собирает строку подключения к PostgreSQL
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Validate проверяет значения, которые cleanenv проверить не может
func (c *Config) Validate() error {
	for name, policy := range map[string]string{
		"bonus.card_policy":     c.Bonus.CardPolicy,
		"bonus.referral_policy": c.Bonus.ReferralPolicy,
	} {
		if policy != BonusPolicyOnce && policy != BonusPolicyRepeatable {
			return fmt.Errorf("%s must be %q or %q, got %q", name, BonusPolicyOnce, BonusPolicyRepeatable, policy)
		}
	}
	if c.JWT.TokenTTL <= 0 {
		return fmt.Errorf("jwt.token_ttl must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be > 0")
	}
	return nil
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config %s: %v", configPath, err)
	}

	return &cfg
}
