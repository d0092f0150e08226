// Пакет s3store — хранение файлов отчётов в S3-совместимом хранилище (AWS S3, MinIO).
// Ключ {site}/{file_name} используется как ключ объекта в бакете без изменений.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bigkaa/reporthub/internal/storage"
)

// API — подмножество методов s3.Client, используемое хранилищем.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// readinessTimeout — таймаут проверки доступности бакета.
const readinessTimeout = 3 * time.Second

// Config — параметры подключения к S3.
type Config struct {
	// Endpoint — адрес S3-совместимого сервиса; пустой — AWS по умолчанию
	Endpoint string
	Region   string
	Bucket   string
	// AccessKey и SecretKey — статические учётные данные
	AccessKey string
	SecretKey string
}

// Store — файлы отчётов в бакете S3.
type Store struct {
	client API
	bucket string
}

var _ storage.BlobStore = (*Store)(nil)

// New создаёт Store с клиентом aws-sdk-go-v2 и статическими учётными данными.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token не используется
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO и большинство совместимых сервисов требуют path-style адресацию
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket), nil
}

// NewWithClient создаёт Store поверх готового клиента.
func NewWithClient(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Write загружает объект. Тело буферизуется целиком: PutObject требует
// известную длину и перематываемый поток для подписи запроса.
func (s *Store) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: пустой ключ", storage.ErrInvalidKey)
	}

	var body *bytes.Reader
	if br, ok := r.(*bytes.Reader); ok {
		body = br
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, fmt.Errorf("ошибка чтения данных: %w", err)
		}
		body = bytes.NewReader(data)
	}
	size := body.Size()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}
	return size, nil
}

// Delete удаляет объект. DeleteObject в S3 идемпотентен,
// поэтому наличие проверяется отдельным HeadObject.
func (s *Store) Delete(ctx context.Context, key string) error {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие объекта через HeadObject.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
	}
	return true, nil
}

// Open открывает объект для чтения.
func (s *Store) Open(ctx context.Context, key string) (*storage.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка получения объекта %s: %w", key, err)
	}

	obj := &storage.Object{Body: out.Body, Size: -1}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		obj.ModTime = *out.LastModified
	}
	return obj, nil
}

// isNotFound распознаёт отсутствие объекта: типизированные ошибки SDK
// либо HTTP 404 у ответа без модели ошибки.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

// CheckReady проверяет доступность бакета через HeadBucket.
func (s *Store) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return "fail", fmt.Sprintf("бакет %s недоступен: %v", s.bucket, err)
	}
	return "ok", "бакет " + s.bucket + " доступен"
}
