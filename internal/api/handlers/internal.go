// internal.go — внутренний API Files Module для соседних сервисов.
// GET /internal/files/{file_id}/content — выдача содержимого без
// пользовательской идентификации, доступ ограничен allowlist-ом хостов.
package handlers

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/workbench/files-module/internal/api/errors"
)

// InternalHandler — обработчик внутреннего API.
type InternalHandler struct {
	api          *APIHandler
	allowedHosts map[string]struct{}
	logger       *slog.Logger
}

// NewInternalHandler создаёт обработчик внутреннего API.
// allowedHosts — список хостов, которым разрешён доступ
// (FM_INTERNAL_ALLOWED_HOSTS); пустой список запрещает всё.
func NewInternalHandler(api *APIHandler, allowedHosts []string, logger *slog.Logger) *InternalHandler {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[h] = struct{}{}
	}
	return &InternalHandler{
		api:          api,
		allowedHosts: hosts,
		logger:       logger.With(slog.String("component", "internal_api")),
	}
}

// GetFileContent обрабатывает GET /internal/files/{file_id}/content.
// Проверка прав пользователя не выполняется — вызывающий сервис
// авторизует доступ на своей стороне. Клиентский хост должен входить
// в allowlist.
func (h *InternalHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	if !h.hostAllowed(r) {
		h.logger.Warn("Запрос к внутреннему API с неразрешённого хоста",
			slog.String("remote_addr", r.RemoteAddr),
		)
		apierrors.Forbidden(w, "Доступ к внутреннему API запрещён")
		return
	}

	fileID := chi.URLParam(r, "file_id")
	h.api.serveContent(w, r, fileID)
}

// hostAllowed проверяет клиентский хост запроса против allowlist.
func (h *InternalHandler) hostAllowed(r *http.Request) bool {
	if len(h.allowedHosts) == 0 {
		return false
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr без порта — сравниваем как есть
		host = r.RemoteAddr
	}

	if _, ok := h.allowedHosts[host]; ok {
		return true
	}

	// Allowlist может содержать имена, клиент приходит с IP
	for allowed := range h.allowedHosts {
		if ips, lookupErr := net.LookupHost(allowed); lookupErr == nil {
			for _, ip := range ips {
				if ip == host {
					return true
				}
			}
		}
	}
	return false
}
