// auth.go — JWT middleware аутентификации Report Hub.
// Токены выпускает сам сервис (HS256), см. internal/auth.
// Claims субъекта (email и сайт) помещаются в контекст запроса.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/reporthub/internal/api/errors"
	"github.com/bigkaa/reporthub/internal/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — claims аутентифицированного субъекта.
	ContextKeyClaims contextKey = "jwt_claims"
	// ContextKeyRequestID — идентификатор запроса.
	ContextKeyRequestID contextKey = "request_id"
	// contextKeyClaimsHolder — ссылка для передачи claims обратно в RequestLogger.
	contextKeyClaimsHolder contextKey = "claims_holder"
)

// TokenParser — проверка подписи и срока действия токена.
type TokenParser interface {
	Parse(tokenString string) (*auth.Claims, error)
}

// AuthClaims — данные субъекта, извлечённые из JWT.
type AuthClaims struct {
	// Subject — email пользователя (sub).
	Subject string
	// SiteName — сайт пользователя.
	SiteName string
}

// JWTAuth — middleware для JWT-аутентификации.
type JWTAuth struct {
	parser TokenParser
	logger *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(parser TokenParser, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		parser: parser,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует его и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := j.parser.Parse(tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			authClaims := &AuthClaims{
				Subject:  claims.Subject,
				SiteName: claims.SiteName,
			}
			if holder, ok := r.Context().Value(contextKeyClaimsHolder).(*claimsHolder); ok {
				holder.claims = authClaims
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, authClaims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// WithClaims помещает AuthClaims в контекст.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// claimsHolder — изменяемая ячейка, через которую внешний middleware
// узнаёт субъекта, определённого внутренним.
type claimsHolder struct {
	claims *AuthClaims
}

func withClaimsHolder(r *http.Request) (*http.Request, *claimsHolder) {
	holder := &claimsHolder{}
	return r.WithContext(context.WithValue(r.Context(), contextKeyClaimsHolder, holder)), holder
}
