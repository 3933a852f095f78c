package main

import (
	"log/slog"
	"os"
	"time"

	httpapi "github.com/immxrtalbeast/meshconf/internal/api/http"
	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/immxrtalbeast/meshconf/internal/repository/model"
	"github.com/immxrtalbeast/meshconf/internal/service"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
	"github.com/immxrtalbeast/meshconf/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	roomRepo, chatRepo, err := setupRepositories(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	relay := service.NewRelayService(roomRepo, log)
	chat := service.NewChatService(chatRepo, relay, log)

	roomController := httpapi.NewRoomController(relay, log)
	chatController := httpapi.NewChatController(chat)

	router := httpapi.SetupRouter(roomController, chatController, cfg.HTTP.AllowOrigins)

	log.Info("starting relay", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupRepositories keeps rooms and chat in memory when no DSN is configured.
func setupRepositories(cfg config.DatabaseConfig, log *slog.Logger) (repository.RoomRepository, repository.ChatRepository, error) {
	if cfg.DSN == "" {
		log.Warn("database dsn is empty, using in-memory storage")
		return repository.NewInMemoryRoomRepository(), repository.NewInMemoryChatRepository(), nil
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresRoomRepository(db), repository.NewPostgresChatRepository(db), nil
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Room{}, &model.Message{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
