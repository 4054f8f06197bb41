package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"storefront/cmd"
	"storefront/internal/data/repository"
	"storefront/internal/notify"
	"storefront/internal/wire"
	"storefront/pkg/database"
	"storefront/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	if config.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	notifier, err := notify.New(config, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("Failed to close notifier", zap.Error(err))
		}
	}()

	repos := repository.NewRepository(db, logger)
	app := wire.Wiring(repos, db, notifier, config, logger)

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}
