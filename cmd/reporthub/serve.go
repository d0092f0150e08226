package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/reporthub/internal/api/handlers"
	"github.com/bigkaa/reporthub/internal/api/middleware"
	"github.com/bigkaa/reporthub/internal/auth"
	"github.com/bigkaa/reporthub/internal/config"
	"github.com/bigkaa/reporthub/internal/database"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/server"
	"github.com/bigkaa/reporthub/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// 1. Конфигурация и логгер
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("Report Hub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 2. PostgreSQL: миграции и пул
	pool, err := connectDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return err
	}
	defer pool.Close()

	// 3. Хранилище файлов
	blobs, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища файлов", slog.String("error", err.Error()))
		return err
	}

	// 4. Repositories
	reportRepo := repository.NewReportRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 5. Services
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	sweeper := service.NewSweeper(reportRepo, blobs, logger)
	reportsSvc := service.NewReportService(reportRepo, blobs, sweeper, logger)
	uploadSvc := service.NewUploadService(reportRepo, blobs, cfg.AllowedExtensions, logger)
	authSvc := service.NewAuthService(userRepo, tokens, logger)

	// 6. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), blobs)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		reportsSvc,
		uploadSvc,
		cfg.MaxUploadSize,
		logger,
	)

	// 7. HTTP-сервер с middleware
	jwtAuth := middleware.NewJWTAuth(tokens, logger)
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		server.JWTAuthWithExclusions(jwtAuth.Middleware(), server.PublicPrefixes...),
	)

	// 8. Запуск (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Report Hub остановлен")
	return nil
}
