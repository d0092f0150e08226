package model

import "time"

// Report — метаданные загруженного отчёта.
// Хранится в таблице reports.
type Report struct {
	// ID — идентификатор записи (BIGSERIAL)
	ID int64
	// SiteName — сайт-владелец (нижний регистр)
	SiteName string
	// Category — категория отчёта (нижний регистр)
	Category string
	// FileName — имя файла в хранилище, {category}_{ddmmyyyy}[_{n}].{ext}
	FileName string
	// FileType — расширение файла (pdf, xls, xlsx)
	FileType string
	// Date — день отчёта, усечённый до 00:00 UTC
	Date time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// BlobKey возвращает ключ файла отчёта в хранилище: {site}/{file_name}.
func (r *Report) BlobKey() string {
	return BlobKey(r.SiteName, r.FileName)
}

// DateString возвращает день отчёта в формате YYYY-MM-DD.
func (r *Report) DateString() string {
	return r.Date.UTC().Format(DateLayout)
}

// BlobKey собирает ключ хранилища из сайта и имени файла.
func BlobKey(site, fileName string) string {
	return site + "/" + fileName
}

// DateLayout — формат даты отчёта во внешних интерфейсах.
const DateLayout = "2006-01-02"
