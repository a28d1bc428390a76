// Пакет basesclient — HTTP-клиент Bases service для делегированных
// проверок прав доступа. Вызывается только когда локальная проверка
// владения не прошла и запрос содержит контекст авторизации.
package basesclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrServiceUnavailable — Bases service недоступен (5xx или транспортная
// ошибка). Технический сбой, принципиально отличный от отказа в доступе:
// вызывающий код не должен превращать его в false.
var ErrServiceUnavailable = errors.New("bases service недоступен")

// Prometheus-метрики запросов к Bases service.
var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_bases_permission_checks_total",
		Help: "Общее количество делегированных проверок прав (по исходу).",
	}, []string{"outcome"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fm_bases_permission_check_duration_seconds",
		Help:    "Длительность запроса проверки прав к Bases service.",
		Buckets: prometheus.DefBuckets,
	})
)

// Типы субъекта и объекта проверки (контракт Bases service).
const (
	PrincipalTypeUser = "user"
	ObjectTypeFile    = "file"
)

// PermissionCheck — параметры делегированной проверки прав.
type PermissionCheck struct {
	// PrincipalID — UUID субъекта (пользователя)
	PrincipalID string
	// ObjectID — UUID объекта (файла)
	ObjectID string
	// AttachmentID — UUID вложения (обязателен)
	AttachmentID string
	// BaseID — UUID базы (опционально)
	BaseID string
	// FolderID — UUID папки (опционально)
	FolderID string
}

// Client — HTTP-клиент Bases service.
type Client struct {
	baseURL      string
	userIDHeader string
	httpClient   *http.Client
	logger       *slog.Logger
}

// New создаёт клиент Bases service.
// baseURL — базовый URL сервиса (FM_BASES_URL).
// userIDHeader — заголовок с UUID пользователя (FM_USER_ID_HEADER).
// timeout — таймаут HTTP-запросов (FM_BASES_TIMEOUT).
func New(baseURL, userIDHeader string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      normalizeURL(baseURL),
		userIDHeader: userIDHeader,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// Настройка пула idle-соединений для эффективного переиспользования
				MaxIdleConnsPerHost: 10,
			},
		},
		logger: logger.With(slog.String("component", "bases_client")),
	}
}

// Check выполняет делегированную проверку прав доступа.
//
// Трёхсторонний контракт ответа:
//   - 2xx — доступ разрешён (true, nil)
//   - 4xx — доступ запрещён (false, nil) — штатный исход, не сбой
//   - 5xx или транспортная ошибка — (false, ErrServiceUnavailable)
//
// Одна попытка на вызов, без внутреннего retry. Различие false /
// ErrServiceUnavailable позволяет внешнему слою безопасно добавить
// retry только для технических сбоев.
func (c *Client) Check(ctx context.Context, userID string, check PermissionCheck) (bool, error) {
	reqURL := c.baseURL + "/v1/permissions/check?" + buildQuery(check)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("создание запроса Check: %w", err)
	}
	req.Header.Set(c.userIDHeader, userID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	checkDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		checksTotal.WithLabelValues("unavailable").Inc()
		c.logger.Warn("Bases service недоступен",
			slog.String("object_id", check.ObjectID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		checksTotal.WithLabelValues("granted").Inc()
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		checksTotal.WithLabelValues("denied").Inc()
		return false, nil
	case resp.StatusCode >= 500:
		checksTotal.WithLabelValues("unavailable").Inc()
		c.logger.Warn("Bases service вернул серверную ошибку",
			slog.String("object_id", check.ObjectID),
			slog.Int("status", resp.StatusCode),
		)
		return false, fmt.Errorf("%w: статус %d", ErrServiceUnavailable, resp.StatusCode)
	default:
		// 3xx без редиректа — неожиданный ответ, считаем сбоем
		checksTotal.WithLabelValues("unavailable").Inc()
		return false, fmt.Errorf("%w: неожиданный статус %d", ErrServiceUnavailable, resp.StatusCode)
	}
}

// buildQuery формирует query-параметры проверки.
// Опциональные поля (base_id, folder_id) не включаются, если пусты.
func buildQuery(check PermissionCheck) string {
	params := url.Values{}
	params.Set("principal_id", check.PrincipalID)
	params.Set("object_id", check.ObjectID)
	params.Set("attachment_id", check.AttachmentID)
	params.Set("principal_type", PrincipalTypeUser)
	params.Set("object_type", ObjectTypeFile)
	if check.BaseID != "" {
		params.Set("base_id", check.BaseID)
	}
	if check.FolderID != "" {
		params.Set("folder_id", check.FolderID)
	}
	return params.Encode()
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
