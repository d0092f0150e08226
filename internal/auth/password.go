// Пакет auth — пароли пользователей (bcrypt) и токены доступа (JWT HS256).
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength — минимальная длина пароля при создании пользователя.
const MinPasswordLength = 8

// bcryptCost — стоимость хэширования; совпадает с существующими хэшами $2b$12.
const bcryptCost = 12

// ErrWeakPassword — пароль не удовлетворяет минимальным требованиям.
var ErrWeakPassword = errors.New("слишком короткий пароль")

// HashPassword хэширует пароль для хранения в таблице users.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: минимум %d символов", ErrWeakPassword, MinPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword сравнивает пароль с bcrypt-хэшем.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}
