// Пакет storage — абстракция хранилища файлов отчётов.
// Ключ файла: {site}/{file_name}. Реализации: filestore (директория)
// и s3store (S3-совместимое объектное хранилище).
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound — файл с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("файл не найден в хранилище")

// ErrInvalidKey — ключ не может быть использован как путь в хранилище.
var ErrInvalidKey = errors.New("недопустимый ключ хранилища")

// Object — открытый для чтения файл хранилища.
// Вызывающий код обязан закрыть Body.
type Object struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

// BlobStore — операции с файлами отчётов.
type BlobStore interface {
	// Write записывает содержимое под ключом key, заменяя существующий файл.
	// Возвращает количество записанных байт.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)
	// Delete удаляет файл. Для отсутствующего файла возвращает ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Exists проверяет наличие файла.
	Exists(ctx context.Context, key string) (bool, error)
	// Open открывает файл для чтения. Для отсутствующего файла возвращает ErrNotFound.
	Open(ctx context.Context, key string) (*Object, error)
}
