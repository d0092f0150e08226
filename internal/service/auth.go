// auth.go — вход пользователей и создание учётных записей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/bigkaa/reporthub/internal/auth"
	"github.com/bigkaa/reporthub/internal/domain/access"
	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/domain/naming"
	"github.com/bigkaa/reporthub/internal/repository"
)

// TokenIssuer — выпуск токенов доступа.
// Реализуется *auth.TokenIssuer.
type TokenIssuer interface {
	Issue(email, site string) (string, error)
	TTL() time.Duration
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	AccessToken string
	TokenType   string
	// ExpiresIn — время жизни токена в секундах
	ExpiresIn int64
	SiteName  string
	// AllowedSites — сайты, доступные пользователю
	AllowedSites []string
}

// AuthService — аутентификация пользователей.
type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет email и пароль и выпускает токен доступа.
// Неизвестный email и неверный пароль неразличимы для вызывающего кода.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Вход отклонён: пользователь не найден", slog.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, &StorageError{Op: opGetUser, Err: err}
	}

	if !auth.VerifyPassword(user.HashedPassword, password) {
		s.logger.Info("Вход отклонён: неверный пароль", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Email, user.SiteName)
	if err != nil {
		return nil, &StorageError{Op: opIssueToken, Err: err}
	}

	allowed := []string{user.SiteName}
	if access.IsPrivileged(user.SiteName) {
		allowed, err = s.users.ListSites(ctx)
		if err != nil {
			return nil, &StorageError{Op: opListUsers, Err: err}
		}
	}

	s.logger.Info("Пользователь вошёл",
		slog.String("email", user.Email),
		slog.String("site", user.SiteName),
	)

	return &LoginResult{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
		SiteName:     user.SiteName,
		AllowedSites: allowed,
	}, nil
}

// CreateUser создаёт пользователя сайта site.
func (s *AuthService) CreateUser(ctx context.Context, email, password, site string) (*model.User, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: некорректный email %q", ErrValidation, email)
	}

	siteName, err := naming.NormalizeSegment(site)
	if err != nil {
		return nil, fmt.Errorf("%w: сайт: %v", ErrValidation, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}

	user := &model.User{Email: email, HashedPassword: hash, SiteName: siteName}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, &StorageError{Op: opCreateUser, Err: err}
	}

	s.logger.Info("Пользователь создан",
		slog.Int64("id", user.ID),
		slog.String("email", user.Email),
		slog.String("site", user.SiteName),
	)
	return user, nil
}

// normalizeEmail приводит email к нижнему регистру без пробелов по краям.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
