package basesclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient создаёт клиент, направленный на тестовый сервер.
func newTestClient(serverURL string) *Client {
	return New(serverURL, "X-User-ID", 2*time.Second, slog.Default())
}

// TestCheck_Granted проверяет: 2xx — доступ разрешён.
func TestCheck_Granted(t *testing.T) {
	var gotURL string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		gotHeader = r.Header.Get("X-User-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ok, err := client.Check(context.Background(), "user-1", PermissionCheck{
		PrincipalID:  "user-1",
		ObjectID:     "file-1",
		AttachmentID: "att-1",
		BaseID:       "base-1",
	})
	if err != nil {
		t.Fatalf("Check ошибка: %v", err)
	}
	if !ok {
		t.Error("Check = false, ожидался true при 200")
	}
	if gotHeader != "user-1" {
		t.Errorf("заголовок X-User-ID = %q, ожидался user-1", gotHeader)
	}
	// Проверяем query-параметры запроса
	for _, part := range []string{
		"principal_id=user-1", "object_id=file-1", "attachment_id=att-1",
		"base_id=base-1", "principal_type=user", "object_type=file",
	} {
		if !strings.Contains(gotURL, part) {
			t.Errorf("URL %q не содержит %q", gotURL, part)
		}
	}
	// folder_id не задан и не должен попасть в запрос
	if strings.Contains(gotURL, "folder_id") {
		t.Errorf("URL %q содержит пустой folder_id", gotURL)
	}
}

// TestCheck_Denied проверяет: 4xx — доступ запрещён, ошибки нет.
func TestCheck_Denied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ok, err := client.Check(context.Background(), "user-1", PermissionCheck{
		PrincipalID: "user-1", ObjectID: "file-1", AttachmentID: "att-1",
	})
	if err != nil {
		t.Fatalf("отказ в доступе — штатный исход, ошибки быть не должно: %v", err)
	}
	if ok {
		t.Error("Check = true, ожидался false при 403")
	}
}

// TestCheck_ServerError проверяет: 5xx — ErrServiceUnavailable, не false-отказ.
func TestCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Check(context.Background(), "user-1", PermissionCheck{
		PrincipalID: "user-1", ObjectID: "file-1", AttachmentID: "att-1",
	})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("ожидался ErrServiceUnavailable, получено: %v", err)
	}
}

// TestCheck_TransportError проверяет: транспортная ошибка — ErrServiceUnavailable.
func TestCheck_TransportError(t *testing.T) {
	// Сервер закрыт — соединение откажет
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Check(context.Background(), "user-1", PermissionCheck{
		PrincipalID: "user-1", ObjectID: "file-1", AttachmentID: "att-1",
	})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("ожидался ErrServiceUnavailable, получено: %v", err)
	}
}
