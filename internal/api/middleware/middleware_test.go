package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// safeBuffer — буфер для перехвата логов.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}

func TestRequestID_Generated(t *testing.T) {
	var fromCtx string
	handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if fromCtx == "" {
		t.Fatal("идентификатор не сгенерирован")
	}
	if rec.Header().Get(HeaderRequestID) != fromCtx {
		t.Errorf("заголовок %q не совпадает с контекстом %q", rec.Header().Get(HeaderRequestID), fromCtx)
	}
}

func TestRequestID_TooLongReplaced(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); len(got) != 36 {
		t.Errorf("ожидался UUID, получено %q", got)
	}
}

func TestNormalizePath(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Get("/api/v1/sites/{site}/reports/{category}", func(_ http.ResponseWriter, r *http.Request) {
		got = normalizePath(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sites/north/reports/macd", nil))
	if got != "/api/v1/sites/{site}/reports/{category}" {
		t.Errorf("шаблон: %q", got)
	}

	if p := normalizePath(httptest.NewRequest(http.MethodGet, "/unknown", nil)); p != unmatchedPath {
		t.Errorf("без маршрута: %q", p)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	router := chi.NewRouter()
	router.Use(MetricsMiddleware())
	router.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("статус: %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{"разрешённый origin", []string{"https://ui.example"}, http.MethodGet, "https://ui.example", false, http.StatusOK, "https://ui.example"},
		{"чужой origin", []string{"https://ui.example"}, http.MethodGet, "https://evil.example", false, http.StatusOK, ""},
		{"без origin", []string{"https://ui.example"}, http.MethodGet, "", false, http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "https://any.example", false, http.StatusOK, "*"},
		{"preflight", []string{"https://ui.example"}, http.MethodOptions, "https://ui.example", true, http.StatusNoContent, "https://ui.example"},
		{"CORS выключен", nil, http.MethodGet, "https://ui.example", false, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/reports", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус: %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin: %q, ожидался %q", got, tt.wantOrigin)
			}
			if tt.preflight && rec.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("preflight без Allow-Methods")
			}
		})
	}
}
