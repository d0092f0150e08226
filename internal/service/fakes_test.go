package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/repository"
	"github.com/bigkaa/reporthub/internal/storage"
	"github.com/bigkaa/reporthub/internal/storage/filestore"
)

// --- In-memory ReportRepository ---

type memReportRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Report
	// createErr — ошибка, возвращаемая Create (имитация сбоя БД)
	createErr error
	// listErr — ошибка, возвращаемая List
	listErr error
	deleted []int64
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{rows: make(map[int64]*model.Report)}
}

func (m *memReportRepo) Create(_ context.Context, r *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.rows {
		if existing.SiteName == r.SiteName && existing.FileName == r.FileName {
			return repository.ErrConflict
		}
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = time.Now()
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memReportRepo) FindByKey(_ context.Context, site, category string, date time.Time) ([]*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Report
	for _, r := range m.rows {
		if strings.EqualFold(r.SiteName, site) && strings.EqualFold(r.Category, category) && r.Date.Equal(date) {
			cp := *r
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *model.Report) int { return int(a.ID - b.ID) })
	return result, nil
}

func (m *memReportRepo) List(_ context.Context, f repository.ListFilter) ([]*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*model.Report
	for _, r := range m.rows {
		if len(f.Sites) > 0 && !slices.Contains(f.Sites, strings.ToLower(r.SiteName)) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		if f.From != nil && r.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && !r.Date.Before(*f.To) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *model.Report) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return result, nil
}

func (m *memReportRepo) ListAll(_ context.Context, afterID int64, limit int) ([]*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.Report
	for _, r := range m.rows {
		if r.ID > afterID {
			cp := *r
			result = append(result, &cp)
		}
	}
	slices.SortFunc(result, func(a, b *model.Report) int { return int(a.ID - b.ID) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memReportRepo) GetByID(_ context.Context, id int64) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReportRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// count возвращает количество записей.
func (m *memReportRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fileNames возвращает имена файлов всех записей в порядке создания.
func (m *memReportRepo) fileNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, m.rows[id].FileName)
	}
	return names
}

// --- BlobStore с подсчётом вызовов и инъекцией ошибок ---

// spyBlobStore оборачивает настоящий BlobStore и считает операции.
type spyBlobStore struct {
	storage.BlobStore
	mu        sync.Mutex
	writes    int
	deletes   int
	writeErr  error
	existsErr error
}

func (s *spyBlobStore) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	s.mu.Lock()
	s.writes++
	err := s.writeErr
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return s.BlobStore.Write(ctx, key, r)
}

func (s *spyBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.BlobStore.Delete(ctx, key)
}

func (s *spyBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	err := s.existsErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.BlobStore.Exists(ctx, key)
}

// --- Общие хелперы ---

var errDBDown = errors.New("база данных недоступна")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — окружение сервисов поверх in-memory метаданных и filestore во временной директории.
type testEnv struct {
	repo     *memReportRepo
	blobs    *spyBlobStore
	store    *filestore.FileStore
	upload   *UploadService
	sweeper  *Sweeper
	reports  *ReportService
	fixedNow time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания filestore: %v", err)
	}

	env := &testEnv{
		repo:     newMemReportRepo(),
		blobs:    &spyBlobStore{BlobStore: fs},
		store:    fs,
		fixedNow: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC),
	}
	logger := testLogger()

	env.upload = NewUploadService(env.repo, env.blobs, []string{"pdf", "xls", "xlsx"}, logger)
	env.upload.now = func() time.Time { return env.fixedNow }
	env.sweeper = NewSweeper(env.repo, env.blobs, logger)
	env.reports = NewReportService(env.repo, env.blobs, env.sweeper, logger)
	return env
}

// uploadPDF загружает PDF-отчёт с указанными флагами.
func (e *testEnv) uploadPDF(t *testing.T, site, category, date string, override, saveAsNew bool) (*model.Report, error) {
	t.Helper()
	return e.upload.Upload(context.Background(), UploadRequest{
		Site:      site,
		Category:  category,
		Date:      date,
		Override:  override,
		SaveAsNew: saveAsNew,
		Filename:  "source.PDF",
		Content:   strings.NewReader("%PDF " + site + " " + category),
	})
}

// mustUpload загружает отчёт и завершает тест при ошибке.
func (e *testEnv) mustUpload(t *testing.T, site, category, date string, override, saveAsNew bool) *model.Report {
	t.Helper()
	rep, err := e.uploadPDF(t, site, category, date, override, saveAsNew)
	if err != nil {
		t.Fatalf("ошибка загрузки %s/%s/%s: %v", site, category, date, err)
	}
	return rep
}

// blobExists проверяет наличие файла в filestore.
func (e *testEnv) blobExists(t *testing.T, site, fileName string) bool {
	t.Helper()
	ok, err := e.store.Exists(context.Background(), model.BlobKey(site, fileName))
	if err != nil {
		t.Fatalf("ошибка Exists: %v", err)
	}
	return ok
}
