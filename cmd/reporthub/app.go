// app.go — общая инициализация команд: конфигурация, логгер, PostgreSQL, хранилище файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/reporthub/internal/config"
	"github.com/bigkaa/reporthub/internal/database"
	"github.com/bigkaa/reporthub/internal/storage"
	"github.com/bigkaa/reporthub/internal/storage/filestore"
	"github.com/bigkaa/reporthub/internal/storage/s3store"
)

// blobBackend — хранилище файлов вместе с проверкой готовности.
type blobBackend interface {
	storage.BlobStore
	CheckReady() (status, message string)
}

// loadConfig загружает конфигурацию и настраивает логгер.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	return cfg, config.SetupLogger(cfg), nil
}

// connectDB применяет миграции и открывает пул подключений.
func connectDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}
	return database.Connect(ctx, cfg, logger)
}

// openBlobStore создаёт хранилище файлов по RH_STORAGE_BACKEND.
func openBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobBackend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		st, err := s3store.New(ctx, s3store.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Хранилище файлов: S3",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
		)
		return st, nil
	default:
		st, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Info("Хранилище файлов: локальная директория", slog.String("data_dir", st.DataDir()))
		return st, nil
	}
}
