package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/workbench/files-module/internal/api/middleware"
	"github.com/arturkryukov/workbench/files-module/internal/basesclient"
	"github.com/arturkryukov/workbench/files-module/internal/config"
	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
	"github.com/arturkryukov/workbench/files-module/internal/service"
)

// Стабы репозиториев для тестов HTTP-слоя.
// Сценарий фиксированный: file-1 принадлежит user-1, других файлов нет.

type stubFileRepo struct{}

func (s *stubFileRepo) Get(_ context.Context, id string, _ bool) (*model.File, error) {
	if id == "file-1" {
		return &model.File{ID: "file-1", OwnerID: "user-1", Filename: "отчёт.pdf", Extension: "pdf"}, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubFileRepo) GetByOwner(context.Context, string, bool) ([]*model.File, error) {
	return nil, nil
}

func (s *stubFileRepo) GetByIDs(context.Context, []string, bool) ([]*model.File, error) {
	return nil, nil
}

func (s *stubFileRepo) GetByIDsAndOwner(context.Context, []string, string, bool) ([]*model.File, error) {
	return nil, nil
}

func (s *stubFileRepo) GetPage(_ context.Context, _ string, params repository.PageParams, _ bool) (*repository.Page, error) {
	return &repository.Page{
		Total:    1,
		Pages:    1,
		Page:     params.Page,
		PageSize: params.PageSize,
		Items:    []*model.File{{ID: "file-1", OwnerID: "user-1"}},
	}, nil
}

func (s *stubFileRepo) Create(context.Context, *model.File) error { return nil }

func (s *stubFileRepo) UpdateExtra(_ context.Context, id string, extra map[string]any) (*model.File, error) {
	return &model.File{ID: id, OwnerID: "user-1", Extra: extra}, nil
}

func (s *stubFileRepo) SoftDelete(_ context.Context, id string) (*model.File, error) {
	return &model.File{ID: id}, nil
}

func (s *stubFileRepo) Restore(_ context.Context, id string) (*model.File, error) {
	return &model.File{ID: id}, nil
}

func (s *stubFileRepo) HardDelete(context.Context, string) error { return nil }

type stubPermRepo struct{}

func (s *stubPermRepo) IsOwner(_ context.Context, fileID, userID string) (bool, error) {
	return fileID == "file-1" && userID == "user-1", nil
}

// stubDelegate — делегат с настраиваемым ответом.
type stubDelegate struct {
	granted bool
	err     error
}

func (s *stubDelegate) Check(context.Context, string, basesclient.PermissionCheck) (bool, error) {
	return s.granted, s.err
}

// newTestRouter собирает chi-router с маршрутами файлового API над стабами.
func newTestRouter(delegate service.PermissionDelegate) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		MaxFileSize:       1024 * 1024,
		AllowedExtensions: map[string]struct{}{"pdf": {}},
		UserIDHeader:      "X-User-ID",
	}

	permSvc := service.NewPermissionService(&stubPermRepo{}, delegate, logger)
	fileSvc := service.NewFileService(cfg, nil, &stubFileRepo{}, nil, permSvc, nil, logger)
	h := NewAPIHandler(fileSvc, permSvc, logger)

	r := chi.NewRouter()
	r.Route("/api/v1/files", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.UserIDHeader))
		r.Get("/", h.ListFiles)
		r.Post("/details", h.FileDetails)
		r.Get("/{file_id}", h.GetFile)
		r.Put("/{file_id}", h.UpdateFile)
	})
	return r
}

// doRequest выполняет запрос от имени пользователя.
func doRequest(t *testing.T, router http.Handler, method, target, userID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestGetFile_Owner проверяет выдачу метаданных владельцу.
func TestGetFile_Owner(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/files/file-1", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}

	var f model.File
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("тело — не JSON: %v", err)
	}
	if f.ID != "file-1" || f.Filename != "отчёт.pdf" {
		t.Errorf("метаданные: %+v", f)
	}
}

// TestGetFile_DenialRendersNotFound проверяет: отказ в доступе
// неотличим от отсутствия файла — 404 в обоих случаях.
func TestGetFile_DenialRendersNotFound(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	// Чужой файл без контекста авторизации
	rec := doRequest(t, router, http.MethodGet, "/api/v1/files/file-1", "user-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("чужой файл: статус = %d, ожидался 404", rec.Code)
	}

	// Несуществующий файл
	rec = doRequest(t, router, http.MethodGet, "/api/v1/files/missing", "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("несуществующий файл: статус = %d, ожидался 404", rec.Code)
	}
}

// TestGetFile_DelegatedGrant проверяет доступ к чужому файлу через
// делегированную проверку (attachment_id в query).
func TestGetFile_DelegatedGrant(t *testing.T) {
	router := newTestRouter(&stubDelegate{granted: true})

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/files/file-1?attachment_id=att-1&base_id=base-1", "user-2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}
}

// TestGetFile_BasesUnavailable проверяет 503 при сбое Bases service:
// технический сбой не маскируется под 404.
func TestGetFile_BasesUnavailable(t *testing.T) {
	router := newTestRouter(&stubDelegate{err: basesclient.ErrServiceUnavailable})

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/files/file-1?attachment_id=att-1", "user-2", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("статус = %d, ожидался 503; тело: %s", rec.Code, rec.Body.String())
	}
}

// TestGetFile_NoIdentity проверяет 401 без заголовка идентификации.
func TestGetFile_NoIdentity(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/files/file-1", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("статус = %d, ожидался 401", rec.Code)
	}
}

// TestListFiles проверяет постраничный листинг.
func TestListFiles(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/files?page=1&page_size=10", "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var page repository.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("тело — не JSON: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("страница: total=%d, items=%d", page.Total, len(page.Items))
	}
}

// TestFileDetails_EmptyResult проверяет: когда ни один файл из списка
// не принадлежит пользователю, ответ — пустой JSON-массив, не null.
func TestFileDetails_EmptyResult(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/files/details", "user-2",
		`{"file_ids":["file-1"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("тело = %q, ожидался пустой массив []", body)
	}
}

// TestUpdateFile_NonOwner проверяет, что мутация чужого файла — 404.
func TestUpdateFile_NonOwner(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/files/file-1", "user-2",
		`{"extra":{"k":"v"}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус = %d, ожидался 404", rec.Code)
	}
}

// TestUpdateFile_Owner проверяет замену extra владельцем.
func TestUpdateFile_Owner(t *testing.T) {
	router := newTestRouter(&stubDelegate{})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/files/file-1", "user-1",
		`{"extra":{"comment":"итоговая версия"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}

	var f model.File
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("тело — не JSON: %v", err)
	}
	if f.Extra["comment"] != "итоговая версия" {
		t.Errorf("extra не заменён: %+v", f.Extra)
	}
}
