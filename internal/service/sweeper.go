// sweeper.go — очистка записей отчётов, чей файл отсутствует в хранилище.
// Prune вызывается при каждой выборке (ListReports, ListDistinctDates):
// чтение имеет побочный эффект удаления устаревших записей.
// SweepAll — полный обход таблицы, запускается командой reporthub sweep.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/storage"
)

// defaultSweepPageSize — размер страницы при полном обходе.
const defaultSweepPageSize = 500

var sweeperPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rh_sweeper_pruned_total",
	Help: "Количество удалённых записей отчётов без файла в хранилище.",
})

// SweepResult — итог полного обхода.
type SweepResult struct {
	// Checked — проверено записей
	Checked int
	// Pruned — удалено записей без файла
	Pruned int
}

// Sweeper — проверка наличия файлов и удаление устаревших записей.
type Sweeper struct {
	reports  repository.ReportRepository
	blobs    storage.BlobStore
	pageSize int
	logger   *slog.Logger
}

// NewSweeper создаёт Sweeper.
func NewSweeper(reports repository.ReportRepository, blobs storage.BlobStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		reports:  reports,
		blobs:    blobs,
		pageSize: defaultSweepPageSize,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Prune возвращает только записи, чей файл существует.
// Записи без файла удаляются из хранилища метаданных.
// Ошибка проверки наличия файла оставляет запись в результате.
func (s *Sweeper) Prune(ctx context.Context, records []*model.Report) ([]*model.Report, error) {
	kept, _, err := s.prune(ctx, records)
	return kept, err
}

// SweepAll обходит все записи постранично и удаляет записи без файла.
func (s *Sweeper) SweepAll(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	var afterID int64

	for {
		page, err := s.reports.ListAll(ctx, afterID, s.pageSize)
		if err != nil {
			return result, &StorageError{Op: opListRows, Err: err}
		}
		if len(page) == 0 {
			break
		}

		_, pruned, err := s.prune(ctx, page)
		if err != nil {
			return result, err
		}
		result.Checked += len(page)
		result.Pruned += pruned
		afterID = page[len(page)-1].ID
	}

	s.logger.Info("Полная очистка завершена",
		slog.Int("checked", result.Checked),
		slog.Int("pruned", result.Pruned),
	)
	return result, nil
}

// prune — общая часть Prune и SweepAll. Возвращает оставшиеся записи
// и количество удалённых.
func (s *Sweeper) prune(ctx context.Context, records []*model.Report) ([]*model.Report, int, error) {
	kept := make([]*model.Report, 0, len(records))
	pruned := 0

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, pruned, err
		}

		exists, err := s.blobs.Exists(ctx, r.BlobKey())
		if err != nil {
			s.logger.Warn("Не удалось проверить наличие файла, запись сохранена",
				slog.Int64("id", r.ID),
				slog.String("key", r.BlobKey()),
				slog.String("error", err.Error()),
			)
			kept = append(kept, r)
			continue
		}
		if exists {
			kept = append(kept, r)
			continue
		}

		// Файл отсутствует: запись не возвращается в любом случае
		if err := s.reports.Delete(ctx, r.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Не удалось удалить запись без файла",
				slog.Int64("id", r.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		pruned++
		sweeperPrunedTotal.Inc()
		s.logger.Warn("Удалена запись отчёта без файла",
			slog.Int64("id", r.ID),
			slog.String("key", r.BlobKey()),
		)
	}

	return kept, pruned, nil
}
