package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/reporthub/internal/domain/model"
)

// reportColumns — список столбцов таблицы reports для SELECT-запросов.
const reportColumns = `id, site_name, category, file_name, file_type, date, created_at`

// ListFilter — параметры выборки отчётов.
type ListFilter struct {
	// Sites — видимые сайты (нижний регистр); пустой срез — без фильтра по сайту
	Sites []string
	// Category — фильтр по категории (без учёта регистра), пусто — все категории
	Category string
	// From — нижняя граница date (включительно)
	From *time.Time
	// To — верхняя граница date (не включительно)
	To *time.Time
}

// ReportRepository — доступ к метаданным отчётов.
type ReportRepository interface {
	// Create вставляет запись и заполняет ID и CreatedAt.
	Create(ctx context.Context, r *model.Report) error
	// FindByKey возвращает записи с точным совпадением (site, category, date), по возрастанию id.
	FindByKey(ctx context.Context, site, category string, date time.Time) ([]*model.Report, error)
	// List возвращает записи по фильтру, упорядоченные по date DESC, id DESC.
	List(ctx context.Context, filter ListFilter) ([]*model.Report, error)
	// ListAll возвращает страницу всех записей с id > afterID по возрастанию id.
	ListAll(ctx context.Context, afterID int64, limit int) ([]*model.Report, error)
	// GetByID возвращает запись по id или ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.Report, error)
	// Delete удаляет запись по id. Возвращает ErrNotFound, если записи нет.
	Delete(ctx context.Context, id int64) error
}

// reportRepo — реализация ReportRepository через pgx.
type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий отчётов.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

// Create вставляет новую запись отчёта.
func (r *reportRepo) Create(ctx context.Context, rep *model.Report) error {
	query := `
		INSERT INTO reports (site_name, category, file_name, file_type, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		rep.SiteName, rep.Category, rep.FileName, rep.FileType, rep.Date,
	).Scan(&rep.ID, &rep.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("отчёт %s/%s: %w", rep.SiteName, rep.FileName, ErrConflict)
		}
		return fmt.Errorf("ошибка создания отчёта: %w", err)
	}
	return nil
}

// FindByKey возвращает все записи ключа конфликта загрузки.
func (r *reportRepo) FindByKey(ctx context.Context, site, category string, date time.Time) ([]*model.Report, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reports
		WHERE LOWER(site_name) = LOWER($1) AND LOWER(category) = LOWER($2) AND date = $3
		ORDER BY id ASC`, reportColumns)

	return r.queryReports(ctx, query, site, category, date)
}

// List выполняет выборку отчётов с фильтрами по видимым сайтам, категории и диапазону дат.
func (r *reportRepo) List(ctx context.Context, filter ListFilter) ([]*model.Report, error) {
	where, args := buildListWhere(filter, 1)
	query := fmt.Sprintf(`SELECT %s FROM reports %s ORDER BY date DESC, id DESC`, reportColumns, where)

	return r.queryReports(ctx, query, args...)
}

// ListAll возвращает страницу записей для полного обхода (keyset pagination по id).
func (r *reportRepo) ListAll(ctx context.Context, afterID int64, limit int) ([]*model.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id > $1 ORDER BY id ASC LIMIT $2`, reportColumns)

	return r.queryReports(ctx, query, afterID, limit)
}

// GetByID возвращает отчёт по id или ErrNotFound.
func (r *reportRepo) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1`, reportColumns)

	rep, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения отчёта: %w", err)
	}
	return rep, nil
}

// Delete удаляет запись отчёта.
func (r *reportRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления отчёта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// queryReports выполняет SELECT и сканирует все строки.
func (r *reportRepo) queryReports(ctx context.Context, query string, args ...any) ([]*model.Report, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки отчётов: %w", err)
	}
	defer rows.Close()

	var result []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования отчёта: %w", err)
		}
		result = append(result, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// scanReport сканирует одну строку в model.Report.
func scanReport(row pgx.Row) (*model.Report, error) {
	rep := &model.Report{}
	if err := row.Scan(
		&rep.ID, &rep.SiteName, &rep.Category, &rep.FileName, &rep.FileType, &rep.Date, &rep.CreatedAt,
	); err != nil {
		return nil, err
	}
	rep.Date = rep.Date.UTC()
	return rep, nil
}

// buildListWhere строит WHERE-условие и аргументы для выборки отчётов.
// startArg — номер первого $-параметра.
func buildListWhere(filter ListFilter, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Видимость сайтов: одно правило для всех выборок
	if len(filter.Sites) > 0 {
		conditions = append(conditions, fmt.Sprintf("LOWER(site_name) = ANY($%d)", argNum))
		args = append(args, filter.Sites)
		argNum++
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(category) = LOWER($%d)", argNum))
		args = append(args, filter.Category)
		argNum++
	}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argNum))
		args = append(args, *filter.From)
		argNum++
	}

	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date < $%d", argNum))
		args = append(args, *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}
