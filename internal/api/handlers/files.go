// files.go — HTTP handlers файловых операций Files Module.
// Листинг, создание (upload / adoption), batch-выборки, метаданные,
// содержимое, обновление extra, soft/hard delete, restore.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/workbench/files-module/internal/api/errors"
	"github.com/arturkryukov/workbench/files-module/internal/api/middleware"
	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
	"github.com/arturkryukov/workbench/files-module/internal/service"
)

// Буфер разбора multipart form в памяти, остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20 // 32 MB

// ListFiles обрабатывает GET /api/v1/files.
// Постраничный листинг файлов вызывающего пользователя.
// Query: page, page_size, order_by (created_at, updated_at), order (asc, desc).
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}

	page, err := h.fileSvc.ListByOwner(r.Context(), userID, parsePageParams(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// CreateFiles обрабатывает POST /api/v1/files.
// Два режима по Content-Type:
//   - multipart/form-data — загрузка байт: части "files" (одна и более),
//     опциональное поле "extra" с JSON-объектом для всех файлов;
//   - application/json — регистрация локальных файлов: массив
//     {path, filename?, extra?}, байты не копируются.
//
// Возвращает 201 со списком созданных файлов.
func (h *APIHandler) CreateFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}

	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный заголовок Content-Type")
		return
	}

	switch contentType {
	case "multipart/form-data":
		h.createFromUpload(w, r, userID)
	case "application/json":
		h.createFromLocal(w, r, userID)
	default:
		apierrors.ValidationError(w,
			fmt.Sprintf("Неподдерживаемый Content-Type %q, ожидается multipart/form-data или application/json", contentType))
	}
}

// createFromUpload — multipart-ветка создания файлов.
func (h *APIHandler) createFromUpload(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка разбора multipart: %s", err.Error()))
		return
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		apierrors.ValidationError(w, "Поле 'files' обязательно и должно содержать хотя бы один файл")
		return
	}

	// Общий extra для всех загружаемых файлов
	var extra map[string]any
	if raw := r.FormValue("extra"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			apierrors.ValidationError(w, "Поле 'extra' должно быть JSON-объектом")
			return
		}
	}

	created := make([]*model.File, 0, len(parts))
	for _, part := range parts {
		f, err := h.uploadPart(r, part, userID, extra)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		created = append(created, f)
	}

	writeJSON(w, http.StatusCreated, created)
}

// uploadPart загружает одну multipart-часть через сервис.
func (h *APIHandler) uploadPart(
	r *http.Request,
	part *multipart.FileHeader,
	userID string,
	extra map[string]any,
) (*model.File, error) {
	src, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("открытие multipart-части: %w", err)
	}
	defer src.Close()

	return h.fileSvc.CreateFromUpload(r.Context(), src, part.Filename, part.Size, userID, extra)
}

// createFromLocal — JSON-ветка создания: adoption локальных файлов.
func (h *APIHandler) createFromLocal(w http.ResponseWriter, r *http.Request, userID string) {
	var reqs []service.LocalFileCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		apierrors.ValidationError(w, "Тело запроса должно быть JSON-массивом описаний файлов")
		return
	}
	if len(reqs) == 0 {
		apierrors.ValidationError(w, "Список файлов пуст")
		return
	}
	for _, req := range reqs {
		if req.Path == "" {
			apierrors.ValidationError(w, "Поле 'path' обязательно для каждого файла")
			return
		}
	}

	created := make([]*model.File, 0, len(reqs))
	for _, req := range reqs {
		f, err := h.fileSvc.CreateFromLocal(r.Context(), req, userID)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		created = append(created, f)
	}

	writeJSON(w, http.StatusCreated, created)
}

// detailsRequest — тело POST /api/v1/files/details.
type detailsRequest struct {
	FileIDs []string `json:"file_ids"`
}

// FileDetails обрабатывает POST /api/v1/files/details.
// Batch-выборка, отфильтрованная по владению. Устаревший endpoint,
// сохранён для совместимости — используйте /api/v1/files/batch-get.
func (h *APIHandler) FileDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}

	var req detailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	files, err := h.fileSvc.GetManyByIDs(r.Context(), req.FileIDs, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Deprecation", "true")
	writeJSON(w, http.StatusOK, files)
}

// batchGetRequest — тело POST /api/v1/files/batch-get.
type batchGetRequest struct {
	Files []service.BatchGetItem `json:"files"`
}

// BatchGetFiles обрабатывает POST /api/v1/files/batch-get.
// Batch-выборка с поэлементным контекстом авторизации: элементы
// с attachment_id проверяются делегированно, остальные — по владению.
func (h *APIHandler) BatchGetFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return
	}

	var req batchGetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	for _, item := range req.Files {
		if item.FileID == "" {
			apierrors.ValidationError(w, "Поле 'file_id' обязательно для каждого элемента")
			return
		}
	}

	files, err := h.fileSvc.BatchGet(r.Context(), req.Files, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// GetFile обрабатывает GET /api/v1/files/{file_id}.
// Авторизация до выдачи: отказ в доступе и отсутствие файла
// отображаются одинаково (404) — API не раскрывает существование
// файлов, недоступных пользователю.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, ok := h.authorizedFile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GetFileContent обрабатывает GET /api/v1/files/{file_id}/content.
// Та же авторизация, что и для метаданных, затем выдача blob.
func (h *APIHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	f, ok := h.authorizedFile(w, r)
	if !ok {
		return
	}
	h.serveContent(w, r, f.ID)
}

// updateFileRequest — тело PUT /api/v1/files/{file_id}.
type updateFileRequest struct {
	Extra map[string]any `json:"extra"`
}

// UpdateFile обрабатывает PUT /api/v1/files/{file_id}.
// Полная замена extra. Только владелец.
func (h *APIHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID, _, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	f, err := h.fileSvc.UpdateExtra(r.Context(), fileID, req.Extra)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{file_id}.
// Физическое удаление записи и blob. Только владелец.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, _, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.fileSvc.HardDelete(r.Context(), fileID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SoftDeleteFile обрабатывает POST /api/v1/files/{file_id}/soft-delete.
// Идемпотентная пометка удаления. Только владелец.
func (h *APIHandler) SoftDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, _, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	if _, err := h.fileSvc.SoftDelete(r.Context(), fileID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreFile обрабатывает POST /api/v1/files/{file_id}/restore.
// Идемпотентное снятие пометки удаления. Только владелец.
func (h *APIHandler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	fileID, _, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	f, err := h.fileSvc.Restore(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// --- Авторизация на уровне handler ---

// authorizedFile извлекает файл и проверяет права вызывающего.
// Контекст авторизации берётся из query-параметров attachment_id,
// base_id, folder_id: при наличии attachment_id — делегированная
// проверка, иначе только владение. Отказ и отсутствие — 404.
// Возвращает (file, true) при разрешённом доступе; ответ об ошибке
// уже записан, когда ok == false.
func (h *APIHandler) authorizedFile(w http.ResponseWriter, r *http.Request) (*model.File, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return nil, false
	}
	fileID := chi.URLParam(r, "file_id")

	q := r.URL.Query()
	authCtx := model.AuthorizationContext{
		AttachmentID: q.Get("attachment_id"),
		BaseID:       q.Get("base_id"),
		FolderID:     q.Get("folder_id"),
	}

	f, err := h.fileSvc.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}

	var granted bool
	if authCtx.AttachmentID != "" {
		granted, err = h.permSvc.CheckFilePermissionWithContext(r.Context(), fileID, userID, authCtx)
	} else {
		granted, err = h.permSvc.CheckFilePermission(r.Context(), fileID, userID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	if !granted {
		apierrors.NotFound(w, "Файл не найден")
		return nil, false
	}

	return f, true
}

// requireOwner — авторизация мутаций: только владелец файла.
// Отказ и отсутствие — 404. Возвращает (fileID, userID, true)
// при подтверждённом владении.
func (h *APIHandler) requireOwner(w http.ResponseWriter, r *http.Request) (fileID, userID string, ok bool) {
	userID, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Пользователь не идентифицирован")
		return "", "", false
	}
	fileID = chi.URLParam(r, "file_id")

	isOwner, err := h.permSvc.CheckFilePermission(r.Context(), fileID, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return "", "", false
	}
	if !isOwner {
		apierrors.NotFound(w, "Файл не найден")
		return "", "", false
	}
	return fileID, userID, true
}

// serveContent отдаёт blob файла с подходящими заголовками.
// wav отдаётся как audio/wav (браузерное воспроизведение записей),
// остальное — application/octet-stream с attachment-именем.
func (h *APIHandler) serveContent(w http.ResponseWriter, r *http.Request, fileID string) {
	f, rc, err := h.fileSvc.OpenContent(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if f.Extension == "wav" {
		contentType = "audio/wav"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", f.SizeBytes))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", sanitizeDispositionName(f.Filename)))

	if _, err := io.Copy(w, rc); err != nil {
		// Заголовки уже ушли — остаётся только залогировать
		h.logger.Warn("Прервана выдача содержимого файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

// sanitizeDispositionName кодирует имя файла для Content-Disposition
// (RFC 5987 percent-encoding для не-ASCII имён).
func sanitizeDispositionName(name string) string {
	var b strings.Builder
	for _, r := range []byte(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteByte(r)
		default:
			fmt.Fprintf(&b, "%%%02X", r)
		}
	}
	return b.String()
}
