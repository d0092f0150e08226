// errors.go — ошибки сервисного слоя Report Hub.
// Обработчики HTTP сопоставляют их с кодами ответа через errors.Is/As.
package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисного слоя.
var (
	// ErrInvalidDate — дата отчёта не в формате YYYY-MM-DD.
	ErrInvalidDate = errors.New("некорректная дата отчёта, ожидается YYYY-MM-DD")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("некорректные входные данные")
	// ErrNotFound — отчёт не найден (или его файл отсутствует).
	ErrNotFound = errors.New("отчёт не найден")
	// ErrForbidden — недостаточно прав для операции.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrUserExists — пользователь с таким email уже существует.
	ErrUserExists = errors.New("пользователь уже существует")
)

// ConflictError — отчёт с тем же (сайт, категория, дата) уже загружен,
// а политика разрешения конфликта не выбрана.
type ConflictError struct {
	// Category — категория отчёта
	Category string
	// Date — дата отчёта в формате YYYY-MM-DD
	Date string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("отчёт категории %q за %s уже существует", e.Category, e.Date)
}

// StorageError — сбой хранилища метаданных или файлов.
type StorageError struct {
	// Op — операция, на которой произошёл сбой
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ошибка хранилища (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Операции для StorageError.
const (
	opFindByKey  = "find_by_key"
	opDeleteBlob = "delete_blob"
	opDeleteRow  = "delete_row"
	opCheckBlob  = "check_blob"
	opWriteBlob  = "write_blob"
	opInsertRow  = "insert_row"
	opListRows   = "list_rows"
	opGetRow     = "get_row"
	opOpenBlob   = "open_blob"
	opListUsers  = "list_users"
	opGetUser    = "get_user"
	opCreateUser = "create_user"
	opIssueToken = "issue_token"
)
