package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/reporthub/internal/config"
	"github.com/bigkaa/reporthub/internal/database"
	"github.com/bigkaa/reporthub/internal/domain/access"
	"github.com/bigkaa/reporthub/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("report_test"),
		postgres.WithUsername("reporthub"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}
	portNum, _ := strconv.Atoi(port.Port())

	cfg := &config.Config{
		DBHost:     host,
		DBPort:     portNum,
		DBName:     "report_test",
		DBUser:     "reporthub",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newReport(site, category, fileName string, date time.Time) *model.Report {
	return &model.Report{
		SiteName: site,
		Category: category,
		FileName: fileName,
		FileType: "pdf",
		Date:     date,
	}
}

// --- Тесты ReportRepository ---

func TestReportCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)

	rep := newReport("personal", "macd", "macd_15012024.pdf", day(2024, 1, 15))
	if err := repo.Create(ctx, rep); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if rep.ID == 0 || rep.CreatedAt.IsZero() {
		t.Fatal("ID или CreatedAt не установлены")
	}

	got, err := repo.GetByID(ctx, rep.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.FileName != rep.FileName || !got.Date.Equal(rep.Date) {
		t.Errorf("GetByID() = %+v", got)
	}

	// Повтор того же файла сайта — конфликт уникальности
	dup := newReport("personal", "macd", "macd_15012024.pdf", day(2024, 1, 15))
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() дубликата: ожидалась ErrConflict, получено %v", err)
	}

	if err := repo.Delete(ctx, rep.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, rep.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после удаления: ожидалась ErrNotFound, получено %v", err)
	}
	if err := repo.Delete(ctx, rep.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete(): ожидалась ErrNotFound, получено %v", err)
	}
}

func TestReportFindByKey(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)

	d := day(2024, 1, 15)
	for _, r := range []*model.Report{
		newReport("personal", "macd", "macd_15012024.pdf", d),
		newReport("personal", "macd", "macd_15012024_2.pdf", d),
		newReport("personal", "macd", "macd_16012024.pdf", day(2024, 1, 16)),
		newReport("shared", "macd", "macd_15012024.pdf", d),
	} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	got, err := repo.FindByKey(ctx, "Personal", "MACD", d)
	if err != nil {
		t.Fatalf("FindByKey() ошибка: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FindByKey() вернул %d записей, ожидалось 2", len(got))
	}
	if got[0].FileName != "macd_15012024.pdf" || got[1].FileName != "macd_15012024_2.pdf" {
		t.Errorf("порядок: %s, %s", got[0].FileName, got[1].FileName)
	}
}

func TestReportList_Visibility(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)

	for _, r := range []*model.Report{
		newReport("personal", "macd", "macd_15012024.pdf", day(2024, 1, 15)),
		newReport("personal", "rsi", "rsi_17012024.pdf", day(2024, 1, 17)),
		newReport("admin", "macd", "macd_16012024.pdf", day(2024, 1, 16)),
		newReport("shared", "macd", "macd_18012024.pdf", day(2024, 1, 18)),
	} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	got, err := repo.List(ctx, ListFilter{Sites: access.VisibleSites("personal")})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() вернул %d записей, ожидалось 3", len(got))
	}
	// date DESC
	wantOrder := []string{"rsi_17012024.pdf", "macd_16012024.pdf", "macd_15012024.pdf"}
	for i, name := range wantOrder {
		if got[i].FileName != name {
			t.Errorf("позиция %d: %s, ожидалось %s", i, got[i].FileName, name)
		}
	}
	for _, r := range got {
		if r.SiteName == "shared" {
			t.Error("чужой сайт не должен попадать в выборку")
		}
	}

	// Категория и диапазон дат
	from := day(2024, 1, 16)
	to := day(2024, 1, 17)
	got, err = repo.List(ctx, ListFilter{Sites: access.VisibleSites("personal"), Category: "MACD", From: &from, To: &to})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(got) != 1 || got[0].SiteName != "admin" {
		t.Errorf("List() с диапазоном: %+v", got)
	}
}

func TestReportListAll_Pagination(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReportRepository(pool)

	for i := 1; i <= 5; i++ {
		r := newReport("personal", "macd", "macd_0"+strconv.Itoa(i)+"012024.pdf", day(2024, 1, i))
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	var seen int
	var afterID int64
	for {
		page, err := repo.ListAll(ctx, afterID, 2)
		if err != nil {
			t.Fatalf("ListAll() ошибка: %v", err)
		}
		if len(page) == 0 {
			break
		}
		seen += len(page)
		afterID = page[len(page)-1].ID
	}
	if seen != 5 {
		t.Errorf("обход вернул %d записей, ожидалось 5", seen)
	}
}

// --- Тесты UserRepository ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	for _, u := range []*model.User{
		{Email: "personal@example.com", HashedPassword: "hash", SiteName: "personal"},
		{Email: "shared@example.com", HashedPassword: "hash", SiteName: "shared"},
		{Email: "admin@example.com", HashedPassword: "hash", SiteName: "admin"},
	} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
		if u.ID == 0 {
			t.Error("ID не установлен")
		}
	}

	dup := &model.User{Email: "personal@example.com", HashedPassword: "hash", SiteName: "personal"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() дубликата: ожидалась ErrConflict, получено %v", err)
	}

	u, err := repo.GetByEmail(ctx, "Personal@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail() ошибка: %v", err)
	}
	if u.SiteName != "personal" {
		t.Errorf("SiteName = %q", u.SiteName)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByEmail(): ожидалась ErrNotFound, получено %v", err)
	}

	sites, err := repo.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites() ошибка: %v", err)
	}
	if len(sites) != 3 || sites[0] != "admin" || sites[1] != "personal" || sites[2] != "shared" {
		t.Errorf("ListSites() = %v", sites)
	}
}
