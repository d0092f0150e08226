package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken — токен не прошёл проверку подписи, срока или issuer.
var ErrInvalidToken = errors.New("невалидный токен")

// Claims — утверждения токена доступа Report Hub.
// sub — email пользователя.
type Claims struct {
	jwt.RegisteredClaims
	// SiteName — сайт пользователя (нижний регистр)
	SiteName string `json:"site_name"`
}

// TokenIssuer выпускает и проверяет токены доступа, подписанные HMAC-SHA256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт TokenIssuer.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		leeway: 5 * time.Second,
		now:    time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue выпускает токен для пользователя email сайта site.
func (i *TokenIssuer) Issue(email, site string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		SiteName: site,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись, срок действия и issuer токена.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.SiteName == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
