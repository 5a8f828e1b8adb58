package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-desk/internal/archive"
	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/config"
	"github.com/garyjia/invoice-desk/internal/export"
	"github.com/garyjia/invoice-desk/internal/gate"
	httpserver "github.com/garyjia/invoice-desk/internal/interfaces/http"
	"github.com/garyjia/invoice-desk/internal/kvstore"
	"github.com/garyjia/invoice-desk/internal/render"
	"github.com/garyjia/invoice-desk/internal/storage"
	"github.com/garyjia/invoice-desk/pkg/database"
	"github.com/garyjia/invoice-desk/pkg/utils"
)

func main() {
	configPath := "configs/config.yaml"
	if p := os.Getenv("INVOICE_DESK_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
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

	logger.Info("Starting invoice desk",
		zap.String("brand", cfg.Brand.Name),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	local := kvstore.NewSQLiteStore(db, kvstore.LocalNamespace, logger)
	invoices := archive.NewStore(local, logger)

	renderer := render.NewRenderer(render.Config{
		Brand:    cfg.Brand.Name,
		Currency: cfg.Brand.Currency,
		Terms:    cfg.Brand.Terms,
		Footer:   cfg.Brand.Footer,
	})
	capturer := render.NewCapturer(cfg.Export.Scale)
	files := storage.NewLocalFileStorage(cfg.Export.OutputDir, logger)

	deps := httpserver.Dependencies{
		Gate:     gate.New(local, logger, gate.WithDelay(cfg.Gate.VerifyDelay)),
		Sessions: kvstore.NewSessions(cfg.Server.SessionTTL),
		Builder:  builder.New(invoices, logger),
		Archive:  invoices,
		Renderer: renderer,
		Capturer: capturer,
		Printer:  render.NewPDFPrinter(),
		Exporter: export.NewExporter(cfg.Brand.Name, renderer, capturer, files, cfg.Export.Delay, logger),
	}

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, deps, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
