// Пакет naming — вычисление имён файлов отчётов.
// Каноническое имя: {category}_{ddmmyyyy}.{ext}.
// Копии при конфликте: {category}_{ddmmyyyy}_{n}.{ext}, n начинается с 2.
// Все функции чистые и не обращаются к хранилищам.
package naming

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSegment — имя сайта или категории недопустимо как сегмент пути.
var ErrInvalidSegment = errors.New("недопустимое имя сегмента")

// ErrMissingExtension — у исходного файла нет расширения.
var ErrMissingExtension = errors.New("у файла нет расширения")

// dayLayout — формат даты в имени файла (ddmmyyyy).
const dayLayout = "02012006"

// segmentPattern — допустимые символы сайта и категории после нормализации.
var segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// suffixPattern — числовой суффикс копии. Длина ограничена тремя цифрами,
// чтобы не спутать суффикс с датой ddmmyyyy.
var suffixPattern = regexp.MustCompile(`_(\d{1,3})\.[^.]+$`)

// NormalizeSegment приводит сайт или категорию к нижнему регистру
// и проверяет, что значение пригодно как сегмент пути.
func NormalizeSegment(s string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if !segmentPattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSegment, s)
	}
	return n, nil
}

// Extension возвращает расширение файла в нижнем регистре без точки.
// Берётся подстрока после последней точки базового имени.
func Extension(filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return "", fmt.Errorf("%w: %q", ErrMissingExtension, filename)
	}
	return strings.ToLower(base[idx+1:]), nil
}

// TruncateDay усекает время до начала дня в UTC.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// CanonicalName возвращает имя файла без суффикса.
// Пример: macd, 2024-01-15, pdf → macd_15012024.pdf
func CanonicalName(category string, day time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", category, day.UTC().Format(dayLayout), ext)
}

// SuffixedName возвращает имя копии с числовым суффиксом.
// Пример: macd, 2024-01-15, 2, pdf → macd_15012024_2.pdf
func SuffixedName(category string, day time.Time, suffix int, ext string) string {
	return fmt.Sprintf("%s_%s_%d.%s", category, day.UTC().Format(dayLayout), suffix, ext)
}

// Suffix извлекает числовой суффикс копии из имени файла.
// Для имени без суффикса возвращает 1: исходный файл считается первой копией.
func Suffix(fileName string) int {
	m := suffixPattern.FindStringSubmatch(fileName)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

// NextSuffix возвращает следующий свободный суффикс для набора
// существующих имён одного ключа: max(суффиксов) + 1.
// Пустой набор трактуется как занятое каноническое имя.
func NextSuffix(existing []string) int {
	maxSuffix := 1
	for _, name := range existing {
		maxSuffix = max(maxSuffix, Suffix(name))
	}
	return maxSuffix + 1
}
