package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/reporthub/internal/domain/model"
)

// UserRepository — доступ к пользователям.
type UserRepository interface {
	// Create вставляет пользователя. ErrConflict — email уже занят.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail возвращает пользователя по email (без учёта регистра) или ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// ListSites возвращает все различные сайты пользователей по алфавиту.
	ListSites(ctx context.Context) ([]string, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// Create вставляет нового пользователя.
func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (email, hashed_password, site_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, u.Email, u.HashedPassword, u.SiteName).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("пользователь %s: %w", u.Email, ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, hashed_password, site_name, created_at
		FROM users WHERE email = LOWER($1)`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.HashedPassword, &u.SiteName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// ListSites возвращает различные сайты пользователей.
func (r *userRepo) ListSites(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT site_name FROM users ORDER BY site_name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки сайтов: %w", err)
	}
	defer rows.Close()

	sites, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования сайтов: %w", err)
	}
	return sites, nil
}
