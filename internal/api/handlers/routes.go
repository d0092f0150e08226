// routes.go — регистрация маршрутов API на chi-роутере.
package handlers

import "github.com/go-chi/chi/v5"

// HandlerFromMux регистрирует все маршруты Report Hub на router.
func HandlerFromMux(h *APIHandler, router chi.Router) {
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		r.Route("/sites/{site}/reports", func(r chi.Router) {
			r.Get("/", h.ListSiteReports)
			r.Get("/{category}", h.ListCategoryReports)
			r.Get("/{category}/dates", h.ListReportDates)
			r.Get("/{category}/{date}", h.ListReportsByDate)
		})

		r.Post("/reports", h.UploadReport)
		r.Get("/reports/{id}/file", h.DownloadReport)
		r.Delete("/reports/{id}", h.DeleteReport)
	})
}
