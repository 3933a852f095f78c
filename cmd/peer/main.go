package main

import (
	"log/slog"
	"os"

	"github.com/immxrtalbeast/meshconf/lib/logger/slogpretty"
)

func main() {
	Execute()
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// setupLogger writes to stderr so the console stays free for chat and status lines.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}

	handler := opts.NewPrettyHandler(os.Stderr)

	return slog.New(handler)
}
