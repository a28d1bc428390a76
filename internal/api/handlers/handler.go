// handler.go — основной обработчик API Files Module.
// Тонкий HTTP-слой над сервисами: разбор запроса, авторизация,
// маппинг ошибок сервисного слоя в коды API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/arturkryukov/workbench/files-module/internal/api/errors"
	"github.com/arturkryukov/workbench/files-module/internal/basesclient"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
	"github.com/arturkryukov/workbench/files-module/internal/service"
)

// APIHandler — основной обработчик API Files Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	fileSvc *service.FileService
	permSvc *service.PermissionService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	fileSvc *service.FileService,
	permSvc *service.PermissionService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		fileSvc: fileSvc,
		permSvc: permSvc,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parsePageParams извлекает параметры пагинации из query string.
// Некорректные значения заменяются значениями по умолчанию —
// листинг не отклоняет запрос из-за мусорной пагинации.
func parsePageParams(r *http.Request) repository.PageParams {
	q := r.URL.Query()
	params := repository.PageParams{
		Page:     1,
		PageSize: 10,
		OrderBy:  q.Get("order_by"),
		Order:    q.Get("order"),
	}

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		params.PageSize = v
	}
	return params
}

// writeServiceError отображает ошибку сервисного слоя в ответ API.
// Неклассифицированные ошибки — 500 с общим сообщением, детали
// остаются только в логах.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *service.FileTooLargeError
	var notAllowed *service.FiletypeNotAllowedError

	switch {
	case errors.Is(err, service.ErrFileNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrFilenameTooLong):
		apierrors.ValidationError(w, err.Error())
	case errors.As(err, &tooLarge):
		apierrors.FileTooLarge(w, tooLarge.Error())
	case errors.As(err, &notAllowed):
		apierrors.FiletypeNotAllowed(w, notAllowed.Error())
	case errors.Is(err, basesclient.ErrServiceUnavailable):
		apierrors.ServiceUnavailable(w, "Сервис проверки прав временно недоступен")
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}
