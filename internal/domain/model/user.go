package model

import "time"

// User — пользователь Report Hub.
// Хранится в таблице users.
type User struct {
	// ID — идентификатор записи
	ID int64
	// Email — логин пользователя (уникальный, нижний регистр)
	Email string
	// HashedPassword — bcrypt-хэш пароля
	HashedPassword string
	// SiteName — сайт пользователя; "admin" — привилегированный тенант
	SiteName string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}
