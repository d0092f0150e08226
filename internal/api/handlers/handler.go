// handler.go — основной обработчик API Report Hub.
// Объединяет health, аутентификацию и операции с отчётами.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/reporthub/internal/api/errors"
	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/service"
	"github.com/bigkaa/reporthub/internal/storage"
)

// Reports — операции чтения и удаления отчётов.
// Реализуется *service.ReportService.
type Reports interface {
	ListReports(ctx context.Context, q service.ListQuery) ([]*model.Report, error)
	ListDistinctDates(ctx context.Context, site, category string) ([]string, error)
	DeleteReport(ctx context.Context, id int64, requesterSite string) error
	OpenReport(ctx context.Context, id int64, requesterSite string) (*model.Report, *storage.Object, error)
}

// Uploader — загрузка отчётов. Реализуется *service.UploadService.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*model.Report, error)
}

// Authenticator — вход пользователя. Реализуется *service.AuthService.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// APIHandler — основной обработчик API Report Hub.
type APIHandler struct {
	health        *HealthHandler
	auth          Authenticator
	reports       Reports
	uploads       Uploader
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize — лимит размера загружаемого файла в байтах.
func NewAPIHandler(
	health *HealthHandler,
	auth Authenticator,
	reports Reports,
	uploads Uploader,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		auth:          auth,
		reports:       reports,
		uploads:       uploads,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError сопоставляет ошибку сервисного слоя с HTTP-ответом.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *service.ConflictError
	var storageErr *service.StorageError

	switch {
	case errors.As(err, &conflict):
		apierrors.Conflict(w, conflict.Error())
	case errors.Is(err, service.ErrUserExists):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidDate), errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, err.Error())
	case errors.As(err, &storageErr):
		h.logger.Error("Ошибка хранилища",
			slog.String("path", r.URL.Path),
			slog.String("op", storageErr.Op),
			slog.String("error", storageErr.Err.Error()),
		)
		apierrors.StorageError(w, "Ошибка хранилища отчётов")
	case errors.Is(err, context.Canceled):
		// Клиент закрыл соединение, ответ уже никто не прочитает
		h.logger.Debug("Запрос отменён клиентом", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
