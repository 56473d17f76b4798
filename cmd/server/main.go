package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/mobilehr/bpm-bridge/internal/bpm"
	"github.com/mobilehr/bpm-bridge/internal/config"
	httpadapter "github.com/mobilehr/bpm-bridge/internal/interfaces/http"
	"github.com/mobilehr/bpm-bridge/internal/lifecycle"
	"github.com/mobilehr/bpm-bridge/internal/report"
	"github.com/mobilehr/bpm-bridge/internal/repository"
	"github.com/mobilehr/bpm-bridge/internal/sync"
	"github.com/mobilehr/bpm-bridge/pkg/database"
	"github.com/mobilehr/bpm-bridge/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting BPM bridge",
		zap.String("environment", cfg.Bpm.Environment),
		zap.Int("port", cfg.Server.Port))

	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open mirror database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store := repository.NewStore(db, logger)

	client := bpm.NewClient(bpm.Config{
		BaseURL:      cfg.Bpm.BaseURL,
		SourceSystem: cfg.Bpm.SourceSystem,
		Environment:  cfg.Bpm.Environment,
		Timeout:      cfg.Bpm.Timeout,
	}, logger)

	engine := sync.NewEngine(client, store, logger)
	coordinator := lifecycle.NewCoordinator(client, store, engine, logger)
	exporter := report.NewExporter(store, logger)

	handlers := httpadapter.NewHandlers(store, engine, coordinator, exporter, logger)
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("BPM bridge stopped")
}
