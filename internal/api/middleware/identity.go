// identity.go — middleware идентификации пользователя Files Module.
// Личность берётся из доверенного заголовка (по умолчанию X-User-ID),
// который заполняет API Gateway после проверки JWT. Files Module
// значению доверяет полностью и подпись повторно не проверяет.
package middleware

import (
	"context"
	"net/http"

	apierrors "github.com/arturkryukov/workbench/files-module/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUserID — UUID аутентифицированного пользователя в контексте запроса.
const ContextKeyUserID contextKey = "user_id"

// Identity возвращает middleware, извлекающий идентификатор пользователя
// из заголовка headerName. Пустой или отсутствующий заголовок — 401.
func Identity(headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(headerName)
			if userID == "" {
				apierrors.Unauthorized(w, "заголовок идентификации пользователя отсутствует")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext возвращает идентификатор пользователя из контекста запроса.
// Возвращает ("", false), если middleware Identity не отработал.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}
