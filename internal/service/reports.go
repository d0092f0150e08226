// reports.go — выборка, удаление и скачивание отчётов.
// Выборки проходят через Sweeper: записи без файла удаляются
// и не возвращаются вызывающему коду.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/reporthub/internal/domain/access"
	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/storage"
)

var reportsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rh_reports_deleted_total",
	Help: "Количество отчётов, удалённых администратором.",
})

// ListQuery — параметры выборки отчётов.
type ListQuery struct {
	// Site — сайт, от имени которого выполняется выборка
	Site string
	// Category — категория; пусто — все категории
	Category string
	// From — нижняя граница дня (включительно)
	From *time.Time
	// To — верхняя граница дня (не включительно)
	To *time.Time
}

// ReportService — операции чтения и удаления отчётов.
type ReportService struct {
	reports repository.ReportRepository
	blobs   storage.BlobStore
	sweeper *Sweeper
	logger  *slog.Logger
}

// NewReportService создаёт сервис отчётов.
func NewReportService(
	reports repository.ReportRepository,
	blobs storage.BlobStore,
	sweeper *Sweeper,
	logger *slog.Logger,
) *ReportService {
	return &ReportService{
		reports: reports,
		blobs:   blobs,
		sweeper: sweeper,
		logger:  logger.With(slog.String("component", "report_service")),
	}
}

// ListReports возвращает отчёты, видимые сайту q.Site: его собственные
// и отчёты admin. Порядок: date DESC, id DESC.
// Записи без файла удаляются как побочный эффект.
func (s *ReportService) ListReports(ctx context.Context, q ListQuery) ([]*model.Report, error) {
	site := access.Normalize(q.Site)
	if site == "" {
		return nil, fmt.Errorf("%w: не указан сайт", ErrValidation)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, fmt.Errorf("%w: конец диапазона дат раньше начала", ErrValidation)
	}

	records, err := s.reports.List(ctx, repository.ListFilter{
		Sites:    access.VisibleSites(site),
		Category: strings.ToLower(strings.TrimSpace(q.Category)),
		From:     q.From,
		To:       q.To,
	})
	if err != nil {
		return nil, &StorageError{Op: opListRows, Err: err}
	}

	return s.sweeper.Prune(ctx, records)
}

// ListDistinctDates возвращает различные дни отчётов категории
// в формате YYYY-MM-DD по убыванию.
func (s *ReportService) ListDistinctDates(ctx context.Context, site, category string) ([]string, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("%w: не указана категория", ErrValidation)
	}

	records, err := s.ListReports(ctx, ListQuery{Site: site, Category: category})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	dates := make([]string, 0, len(records))
	for _, r := range records {
		d := r.DateString()
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates, nil
}

// DeleteReport удаляет отчёт и его файл. Доступно только admin;
// права проверяются до поиска записи.
func (s *ReportService) DeleteReport(ctx context.Context, id int64, requesterSite string) error {
	if !access.IsPrivileged(requesterSite) {
		return ErrForbidden
	}

	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return &StorageError{Op: opGetRow, Err: err}
	}

	key := rep.BlobKey()
	if err := s.blobs.Delete(ctx, key); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return &StorageError{Op: opDeleteBlob, Err: err}
		}
		s.logger.Warn("Файл удаляемого отчёта отсутствует",
			slog.Int64("id", id),
			slog.String("key", key),
		)
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return &StorageError{Op: opDeleteRow, Err: err}
	}

	reportsDeletedTotal.Inc()
	s.logger.Info("Отчёт удалён",
		slog.Int64("id", id),
		slog.String("site", rep.SiteName),
		slog.String("file_name", rep.FileName),
	)
	return nil
}

// OpenReport открывает файл отчёта для скачивания.
// Отчёт чужого сайта не раскрывается: возвращается ErrNotFound.
// Если файл исчез, запись удаляется и возвращается ErrNotFound.
// Вызывающий код обязан закрыть Object.Body.
func (s *ReportService) OpenReport(ctx context.Context, id int64, requesterSite string) (*model.Report, *storage.Object, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, &StorageError{Op: opGetRow, Err: err}
	}

	if !access.CanView(requesterSite, rep.SiteName) {
		return nil, nil, ErrNotFound
	}

	obj, err := s.blobs.Open(ctx, rep.BlobKey())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, &StorageError{Op: opOpenBlob, Err: err}
		}
		// Ленивая очистка: файл удалён мимо сервиса
		if _, pruneErr := s.sweeper.Prune(ctx, []*model.Report{rep}); pruneErr != nil {
			s.logger.Warn("Не удалось удалить запись без файла",
				slog.Int64("id", id),
				slog.String("error", pruneErr.Error()),
			)
		}
		return nil, nil, ErrNotFound
	}

	return rep, obj, nil
}
