// reports.go — обработчики операций с отчётами:
// списки по сайту и категории, даты, загрузка, скачивание, удаление.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/reporthub/internal/api/errors"
	"github.com/bigkaa/reporthub/internal/api/middleware"
	"github.com/bigkaa/reporthub/internal/domain/access"
	"github.com/bigkaa/reporthub/internal/domain/model"
	"github.com/bigkaa/reporthub/internal/service"
)

// multipartMemory — часть multipart-формы, удерживаемая в памяти;
// остальное уходит во временные файлы.
const multipartMemory = 8 << 20

// multipartOverhead — запас на заголовки и текстовые поля формы сверх лимита файла.
const multipartOverhead = 1 << 20

// reportResponse — представление отчёта в API.
type reportResponse struct {
	ID        int64     `json:"id"`
	SiteName  string    `json:"site_name"`
	Category  string    `json:"category"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	FileURL   string    `json:"file_url"`
}

// reportListResponse — список отчётов.
type reportListResponse struct {
	Items []reportResponse `json:"items"`
	Total int              `json:"total"`
}

// datesResponse — список дат категории.
type datesResponse struct {
	Category string   `json:"category"`
	Dates    []string `json:"dates"`
}

func toReportResponse(r *model.Report) reportResponse {
	return reportResponse{
		ID:        r.ID,
		SiteName:  r.SiteName,
		Category:  r.Category,
		FileName:  r.FileName,
		FileType:  r.FileType,
		Date:      r.DateString(),
		CreatedAt: r.CreatedAt,
		FileURL:   fmt.Sprintf("/api/v1/reports/%d/file", r.ID),
	}
}

func toReportList(reports []*model.Report) reportListResponse {
	items := make([]reportResponse, 0, len(reports))
	for _, r := range reports {
		items = append(items, toReportResponse(r))
	}
	return reportListResponse{Items: items, Total: len(items)}
}

// ListSiteReports — GET /api/v1/sites/{site}/reports.
func (h *APIHandler) ListSiteReports(w http.ResponseWriter, r *http.Request) {
	site, ok := h.authorizeSite(w, r)
	if !ok {
		return
	}

	h.listReports(w, r, service.ListQuery{Site: site})
}

// ListCategoryReports — GET /api/v1/sites/{site}/reports/{category}.
// Необязательные параметры from и to (YYYY-MM-DD) задают диапазон включительно.
func (h *APIHandler) ListCategoryReports(w http.ResponseWriter, r *http.Request) {
	site, ok := h.authorizeSite(w, r)
	if !ok {
		return
	}

	q := service.ListQuery{Site: site, Category: chi.URLParam(r, "category")}

	if v := r.URL.Query().Get("from"); v != "" {
		from, err := parseDay(v)
		if err != nil {
			apierrors.ValidationError(w, "Некорректный параметр from: ожидается YYYY-MM-DD")
			return
		}
		q.From = &from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := parseDay(v)
		if err != nil {
			apierrors.ValidationError(w, "Некорректный параметр to: ожидается YYYY-MM-DD")
			return
		}
		// Граница в сервисе не включительная
		to = to.AddDate(0, 0, 1)
		q.To = &to
	}

	h.listReports(w, r, q)
}

// ListReportsByDate — GET /api/v1/sites/{site}/reports/{category}/{date}.
func (h *APIHandler) ListReportsByDate(w http.ResponseWriter, r *http.Request) {
	site, ok := h.authorizeSite(w, r)
	if !ok {
		return
	}

	day, err := parseDay(chi.URLParam(r, "date"))
	if err != nil {
		apierrors.ValidationError(w, service.ErrInvalidDate.Error())
		return
	}
	next := day.AddDate(0, 0, 1)

	h.listReports(w, r, service.ListQuery{
		Site:     site,
		Category: chi.URLParam(r, "category"),
		From:     &day,
		To:       &next,
	})
}

func (h *APIHandler) listReports(w http.ResponseWriter, r *http.Request, q service.ListQuery) {
	reports, err := h.reports.ListReports(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportList(reports))
}

// ListReportDates — GET /api/v1/sites/{site}/reports/{category}/dates.
func (h *APIHandler) ListReportDates(w http.ResponseWriter, r *http.Request) {
	site, ok := h.authorizeSite(w, r)
	if !ok {
		return
	}

	category := chi.URLParam(r, "category")
	dates, err := h.reports.ListDistinctDates(r.Context(), site, category)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, datesResponse{Category: access.Normalize(category), Dates: dates})
}

// UploadReport — POST /api/v1/reports (multipart/form-data).
// Поля: site_name, category, date, override, save_as_new, file.
// Пустой site_name означает сайт текущего пользователя.
func (h *APIHandler) UploadReport(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxUploadSize))
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Отсутствует файл (поле file)")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxUploadSize))
		return
	}

	override, err := parseFlag(r.FormValue("override"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректное значение override")
		return
	}
	saveAsNew, err := parseFlag(r.FormValue("save_as_new"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректное значение save_as_new")
		return
	}

	site := access.Normalize(r.FormValue("site_name"))
	if site == "" {
		site = claims.SiteName
	}
	if !access.CanAccess(claims.SiteName, site) {
		apierrors.Forbidden(w, "Загрузка отчётов другого сайта запрещена")
		return
	}

	rep, err := h.uploads.Upload(r.Context(), service.UploadRequest{
		Site:      site,
		Category:  r.FormValue("category"),
		Date:      r.FormValue("date"),
		Override:  override,
		SaveAsNew: saveAsNew,
		Filename:  header.Filename,
		Content:   file,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReportResponse(rep))
}

// DownloadReport — GET /api/v1/reports/{id}/file.
func (h *APIHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	id, ok := reportID(w, r)
	if !ok {
		return
	}

	rep, obj, err := h.reports.OpenReport(r.Context(), id, claims.SiteName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", contentType(rep.FileType))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rep.FileName}))
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("Скачивание отчёта прервано",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteReport — DELETE /api/v1/reports/{id}. Только для admin.
func (h *APIHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	id, ok := reportID(w, r)
	if !ok {
		return
	}

	if err := h.reports.DeleteReport(r.Context(), id, claims.SiteName); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeSite проверяет доступ субъекта к сайту из пути.
// При отказе ответ уже записан и возвращается false.
func (h *APIHandler) authorizeSite(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return "", false
	}

	site := access.Normalize(chi.URLParam(r, "site"))
	if !access.CanAccess(claims.SiteName, site) {
		apierrors.Forbidden(w, "Нет доступа к отчётам сайта "+site)
		return "", false
	}
	return site, true
}

func reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, "Некорректный идентификатор отчёта")
		return 0, false
	}
	return id, true
}

func parseDay(v string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout, v, time.UTC)
}

// parseFlag разбирает булево поле формы; пусто — false.
func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	if v == "on" {
		return true, nil
	}
	return strconv.ParseBool(v)
}

// contentType возвращает MIME-тип по расширению отчёта.
func contentType(fileType string) string {
	switch fileType {
	case "pdf":
		return "application/pdf"
	case "xls":
		return "application/vnd.ms-excel"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if t := mime.TypeByExtension("." + fileType); t != "" {
		return t
	}
	return "application/octet-stream"
}
