package errors

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

// TestWriteError проверяет формат тела ошибки и заголовки.
func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 404, CodeNotFound, "Файл не найден")

	if rec.Code != 404 {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, ожидался application/json", ct)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ответа — не JSON: %v", err)
	}
	if body.Error.Code != CodeNotFound {
		t.Errorf("code = %q, ожидался %q", body.Error.Code, CodeNotFound)
	}
	if body.Error.Message != "Файл не найден" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

// TestConstructors проверяет статус-коды конструкторов.
func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		write      func(rec *httptest.ResponseRecorder)
		wantStatus int
		wantCode   string
	}{
		{"ValidationError", func(r *httptest.ResponseRecorder) { ValidationError(r, "m") }, 400, CodeValidationError},
		{"NotFound", func(r *httptest.ResponseRecorder) { NotFound(r, "m") }, 404, CodeNotFound},
		{"Unauthorized", func(r *httptest.ResponseRecorder) { Unauthorized(r, "m") }, 401, CodeUnauthorized},
		{"Forbidden", func(r *httptest.ResponseRecorder) { Forbidden(r, "m") }, 403, CodeForbidden},
		{"FileTooLarge", func(r *httptest.ResponseRecorder) { FileTooLarge(r, "m") }, 413, CodeFileTooLarge},
		{"FiletypeNotAllowed", func(r *httptest.ResponseRecorder) { FiletypeNotAllowed(r, "m") }, 415, CodeFiletypeNotAllowed},
		{"ServiceUnavailable", func(r *httptest.ResponseRecorder) { ServiceUnavailable(r, "m") }, 503, CodeServiceUnavailable},
		{"InternalError", func(r *httptest.ResponseRecorder) { InternalError(r, "m") }, 500, CodeInternalError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		tt.write(rec)
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: статус = %d, ожидался %d", tt.name, rec.Code, tt.wantStatus)
		}
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: тело — не JSON: %v", tt.name, err)
		}
		if body.Error.Code != tt.wantCode {
			t.Errorf("%s: code = %q, ожидался %q", tt.name, body.Error.Code, tt.wantCode)
		}
	}
}
