// Пакет filestore — хранение файлов отчётов в локальной директории.
// Ключ {site}/{file_name} отображается на {dataDir}/{site}/{file_name}.
// Запись: temp файл → fsync → atomic rename.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/reporthub/internal/storage"
)

// FileStore — файлы отчётов на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (RH_DATA_DIR)
	dataDir string
}

var _ storage.BlobStore = (*FileStore)(nil)

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// DataDir возвращает путь к директории данных.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// Write записывает данные из r под ключом key.
// При ошибке temp файл удаляется, существующий файл не затрагивается.
func (s *FileStore) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return 0, fmt.Errorf("ошибка создания директории для %s: %w", key, err)
	}

	tmpPath := fullPath + "." + uuid.New().String()[:8] + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Delete удаляет файл с диска.
func (s *FileStore) Delete(_ context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
// Директория с тем же именем файлом не считается.
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка получения информации о файле %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Open открывает файл для чтения.
func (s *FileStore) Open(_ context.Context, key string) (*storage.Object, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", key, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	return &storage.Object{Body: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// resolve преобразует ключ в абсолютный путь внутри dataDir.
// Абсолютные пути и выход за пределы dataDir запрещены.
func (s *FileStore) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
		}
	}
	return filepath.Join(s.dataDir, filepath.FromSlash(key)), nil
}

// CheckReady проверяет, что директория данных существует и доступна.
func (s *FileStore) CheckReady() (status, message string) {
	info, err := os.Stat(s.dataDir)
	if err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна: %v", err)
	}
	if !info.IsDir() {
		return "fail", s.dataDir + " не является директорией"
	}
	return "ok", "директория данных доступна"
}
