package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/linemk/rewards-wallet/internal/lib/logger/handlers/slogpretty"
)

// окружения из APP_ENV
const (
	EnvLocal       = "local"
	EnvDev         = "dev"
	EnvDevelopment = "development" // значение APP_ENV по умолчанию
	EnvProd        = "prod"
)

const serviceName = "rewards-wallet"

// SetupLogger - логгер сервиса в stdout
func SetupLogger(env string) *slog.Logger {
	return New(env, os.Stdout)
}

// New: local - цветной вывод с debug, dev/development - JSON с debug,
// prod и неизвестные окружения - JSON с info. В JSON к записи добавляются service и env.
func New(env string, out io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		return newPretty(out)
	case EnvDev, EnvDevelopment:
		return newJSON(out, env, slog.LevelDebug)
	default:
		return newJSON(out, env, slog.LevelInfo)
	}
}

func newJSON(out io.Writer, env string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("env", env),
	)
}

func newPretty(out io.Writer) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}
	return slog.New(opts.NewPrettyHandler(out))
}
