// upload.go — загрузка отчётов и разрешение конфликтов имён.
// Ключ конфликта: (сайт, категория, день). Политики: отказ, замена (override),
// сохранение копии с числовым суффиксом (save_as_new).
// Проверка и запись для одного ключа сериализованы keyed mutex.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/domain/naming"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/storage"
)

// Результаты загрузки для метрики rh_uploads_total.
const (
	uploadCreated    = "created"
	uploadOverridden = "overridden"
	uploadSavedAsNew = "saved_as_new"
	uploadConflict   = "conflict"
	uploadRejected   = "rejected"
	uploadFailed     = "failed"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rh_uploads_total",
		Help: "Общее количество загрузок отчётов (по результату).",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rh_upload_bytes_total",
		Help: "Общее количество записанных байт отчётов.",
	})
)

// UploadRequest — параметры загрузки отчёта.
type UploadRequest struct {
	// Site — сайт-владелец
	Site string
	// Category — категория отчёта
	Category string
	// Date — день отчёта YYYY-MM-DD; пусто — текущая дата
	Date string
	// Override — заменить все отчёты ключа
	Override bool
	// SaveAsNew — сохранить как копию с суффиксом
	SaveAsNew bool
	// Filename — исходное имя файла (источник расширения)
	Filename string
	// Content — содержимое файла
	Content io.Reader
}

// UploadService — загрузка отчётов.
type UploadService struct {
	reports repository.ReportRepository
	blobs   storage.BlobStore
	allowed map[string]bool
	locks   *kmutex.Kmutex
	now     func() time.Time
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
// allowedExtensions — допустимые расширения файлов (нижний регистр, без точки).
func NewUploadService(
	reports repository.ReportRepository,
	blobs storage.BlobStore,
	allowedExtensions []string,
	logger *slog.Logger,
) *UploadService {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &UploadService{
		reports: reports,
		blobs:   blobs,
		allowed: allowed,
		locks:   kmutex.New(),
		now:     time.Now,
		logger:  logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет отчёт и возвращает созданную запись.
//
// Порядок:
//  1. Валидация входных данных (без I/O)
//  2. Поиск записей ключа (сайт, категория, день)
//  3. Выбор имени по политике; при override — удаление файлов и записей ключа
//  4. Запись файла, затем вставка метаданных
//
// Сбой вставки метаданных удаляет только что записанный файл.
// Удаления при override не откатываются.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*model.Report, error) {
	in, err := s.validate(req)
	if err != nil {
		uploadsTotal.WithLabelValues(uploadRejected).Inc()
		return nil, err
	}

	lockKey := in.site + "/" + in.category + "/" + in.day.Format(model.DateLayout)
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	existing, err := s.reports.FindByKey(ctx, in.site, in.category, in.day)
	if err != nil {
		uploadsTotal.WithLabelValues(uploadFailed).Inc()
		return nil, &StorageError{Op: opFindByKey, Err: err}
	}

	fileName, result, err := s.resolveName(ctx, in, existing, req.Override, req.SaveAsNew)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			uploadsTotal.WithLabelValues(uploadConflict).Inc()
		} else {
			uploadsTotal.WithLabelValues(uploadFailed).Inc()
		}
		return nil, err
	}

	key := model.BlobKey(in.site, fileName)
	size, err := s.blobs.Write(ctx, key, req.Content)
	if err != nil {
		uploadsTotal.WithLabelValues(uploadFailed).Inc()
		return nil, &StorageError{Op: opWriteBlob, Err: err}
	}

	rep := &model.Report{
		SiteName: in.site,
		Category: in.category,
		FileName: fileName,
		FileType: in.ext,
		Date:     in.day,
	}
	if err := s.reports.Create(ctx, rep); err != nil {
		// Файл без записи — мусор, удаляем best-effort
		if delErr := s.blobs.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			s.logger.Warn("Не удалось удалить файл после сбоя вставки метаданных",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		uploadsTotal.WithLabelValues(uploadFailed).Inc()
		return nil, &StorageError{Op: opInsertRow, Err: err}
	}

	uploadsTotal.WithLabelValues(result).Inc()
	uploadBytesTotal.Add(float64(size))

	s.logger.Info("Отчёт загружен",
		slog.Int64("id", rep.ID),
		slog.String("site", rep.SiteName),
		slog.String("category", rep.Category),
		slog.String("date", rep.DateString()),
		slog.String("file_name", rep.FileName),
		slog.String("result", result),
		slog.Int64("size", size),
	)

	return rep, nil
}

// uploadInput — нормализованные параметры загрузки.
type uploadInput struct {
	site     string
	category string
	ext      string
	day      time.Time
}

// validate нормализует и проверяет параметры загрузки.
func (s *UploadService) validate(req UploadRequest) (*uploadInput, error) {
	site, err := naming.NormalizeSegment(req.Site)
	if err != nil {
		return nil, fmt.Errorf("%w: сайт: %v", ErrValidation, err)
	}
	category, err := naming.NormalizeSegment(req.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: категория: %v", ErrValidation, err)
	}
	ext, err := naming.Extension(req.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !s.allowed[ext] {
		return nil, fmt.Errorf("%w: недопустимый тип файла %q", ErrValidation, ext)
	}
	if req.Override && req.SaveAsNew {
		return nil, fmt.Errorf("%w: override и save_as_new взаимоисключающие", ErrValidation)
	}
	if req.Content == nil {
		return nil, fmt.Errorf("%w: отсутствует содержимое файла", ErrValidation)
	}

	day, err := s.parseDay(req.Date)
	if err != nil {
		return nil, err
	}

	return &uploadInput{site: site, category: category, ext: ext, day: day}, nil
}

// parseDay разбирает дату YYYY-MM-DD. Пустая дата — текущий день.
func (s *UploadService) parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return naming.TruncateDay(s.now()), nil
	}
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return naming.TruncateDay(t), nil
}

// resolveName выбирает имя файла по политике разрешения конфликта.
// Возвращает имя и результат для метрики.
func (s *UploadService) resolveName(
	ctx context.Context,
	in *uploadInput,
	existing []*model.Report,
	override, saveAsNew bool,
) (string, string, error) {
	canonical := naming.CanonicalName(in.category, in.day, in.ext)

	switch {
	case len(existing) == 0:
		return canonical, uploadCreated, nil

	case override:
		if err := s.removeAll(ctx, existing); err != nil {
			return "", "", err
		}
		return canonical, uploadOverridden, nil

	case saveAsNew:
		names := make([]string, 0, len(existing))
		for _, r := range existing {
			names = append(names, r.FileName)
		}
		name, err := s.freeSuffixedName(ctx, in, naming.NextSuffix(names))
		if err != nil {
			return "", "", err
		}
		return name, uploadSavedAsNew, nil

	default:
		return "", "", &ConflictError{Category: in.category, Date: in.day.Format(model.DateLayout)}
	}
}

// removeAll удаляет файлы и записи ключа перед заменой.
// Отсутствующий файл ошибкой не считается.
func (s *UploadService) removeAll(ctx context.Context, existing []*model.Report) error {
	for _, r := range existing {
		key := r.BlobKey()
		if err := s.blobs.Delete(ctx, key); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return &StorageError{Op: opDeleteBlob, Err: err}
			}
			s.logger.Warn("Файл заменяемого отчёта уже отсутствует",
				slog.Int64("id", r.ID),
				slog.String("key", key),
			)
		}
		if err := s.reports.Delete(ctx, r.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return &StorageError{Op: opDeleteRow, Err: err}
		}
	}
	return nil
}

// freeSuffixedName подбирает суффикс, начиная с suffix, для которого
// в хранилище ещё нет файла.
func (s *UploadService) freeSuffixedName(ctx context.Context, in *uploadInput, suffix int) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", &StorageError{Op: opCheckBlob, Err: err}
		}
		name := naming.SuffixedName(in.category, in.day, suffix, in.ext)
		exists, err := s.blobs.Exists(ctx, model.BlobKey(in.site, name))
		if err != nil {
			return "", &StorageError{Op: opCheckBlob, Err: err}
		}
		if !exists {
			return name, nil
		}
		suffix++
	}
}
