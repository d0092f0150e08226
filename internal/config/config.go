// Пакет config — загрузка и валидация конфигурации Report Hub
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Поддерживаемые backend'ы хранилища файлов.
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Config содержит все параметры конфигурации Report Hub.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT ---

	// Секрет HMAC для подписи токенов (HS256)
	JWTSecret string
	// Issuer выпускаемых токенов
	JWTIssuer string
	// Время жизни access token
	JWTTTL time.Duration

	// --- Хранилище отчётов ---

	// Backend хранилища: local или s3
	StorageBackend string
	// Корневая директория для local backend
	DataDir string
	// S3-совместимый endpoint (MinIO и т.п.), пустой — AWS по умолчанию
	S3Endpoint string
	// Регион S3
	S3Region string
	// Бакет S3
	S3Bucket string
	// Access key S3
	S3AccessKey string
	// Secret key S3
	S3SecretKey string

	// --- Загрузка ---

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Допустимые расширения файлов отчётов (нижний регистр, без точки)
	AllowedExtensions []string
	// Origins, которым разрешены CORS-запросы (пусто — CORS выключен)
	CORSAllowedOrigins []string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// RH_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("RH_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("RH_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RH_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// RH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RH_LOG_LEVEL: %w", err)
	}

	// RH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RH_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("RH_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RH_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("RH_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RH_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RH_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RH_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// RH_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("RH_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("RH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RH_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("RH_DB_NAME", "report_db")
	// RH_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("RH_DB_USER")
	if err != nil {
		return nil, err
	}
	// RH_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("RH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("RH_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RH_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	// RH_JWT_SECRET — обязательный, не короче 16 символов
	cfg.JWTSecret, err = getEnvRequired("RH_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("RH_JWT_SECRET: секрет должен быть не короче 16 символов")
	}
	cfg.JWTIssuer = getEnvDefault("RH_JWT_ISSUER", "report-hub")
	cfg.JWTTTL, err = getEnvDuration("RH_JWT_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RH_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("RH_JWT_TTL: значение должно быть > 0")
	}

	// --- Хранилище отчётов ---

	cfg.StorageBackend = strings.ToLower(getEnvDefault("RH_STORAGE_BACKEND", StorageBackendLocal))
	switch cfg.StorageBackend {
	case StorageBackendLocal:
		cfg.DataDir = getEnvDefault("RH_DATA_DIR", "./uploaded_reports")
	case StorageBackendS3:
		cfg.S3Endpoint = strings.TrimRight(getEnvDefault("RH_S3_ENDPOINT", ""), "/")
		cfg.S3Region = getEnvDefault("RH_S3_REGION", "us-east-1")
		if cfg.S3Bucket, err = getEnvRequired("RH_S3_BUCKET"); err != nil {
			return nil, err
		}
		if cfg.S3AccessKey, err = getEnvRequired("RH_S3_ACCESS_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3SecretKey, err = getEnvRequired("RH_S3_SECRET_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("RH_STORAGE_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.StorageBackend)
	}

	// --- Загрузка ---

	maxUpload, err := getEnvInt("RH_MAX_UPLOAD_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("RH_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("RH_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	cfg.AllowedExtensions = parseCSV(strings.ToLower(getEnvDefault("RH_ALLOWED_EXTENSIONS", "pdf,xls,xlsx")))
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("RH_ALLOWED_EXTENSIONS: список расширений пуст")
	}
	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("RH_CORS_ALLOWED_ORIGINS", ""))

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("RH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RH_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
// Учётные данные экранируются.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
