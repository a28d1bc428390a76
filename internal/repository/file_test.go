package repository

import (
	"strings"
	"testing"
)

// --- Тесты buildOrderBy ---

// TestBuildOrderBy_Default проверяет значения по умолчанию (updated_at DESC).
func TestBuildOrderBy_Default(t *testing.T) {
	got := buildOrderBy("", "")
	if got != "ORDER BY updated_at DESC" {
		t.Errorf("buildOrderBy = %q, ожидался 'ORDER BY updated_at DESC'", got)
	}
}

// TestBuildOrderBy_CreatedAtAsc проверяет сортировку по created_at asc.
func TestBuildOrderBy_CreatedAtAsc(t *testing.T) {
	got := buildOrderBy(OrderByCreatedAt, OrderAsc)
	if got != "ORDER BY created_at ASC" {
		t.Errorf("buildOrderBy = %q, ожидался 'ORDER BY created_at ASC'", got)
	}
}

// TestBuildOrderBy_Whitelist проверяет защиту от SQL-инъекций:
// неизвестные значения заменяются значениями по умолчанию.
func TestBuildOrderBy_Whitelist(t *testing.T) {
	got := buildOrderBy("filename; DROP TABLE files", "1=1")
	if strings.Contains(got, "DROP") {
		t.Fatalf("buildOrderBy пропустил неразрешённое поле: %q", got)
	}
	if got != "ORDER BY updated_at DESC" {
		t.Errorf("buildOrderBy = %q, ожидался fallback к updated_at DESC", got)
	}
}

// --- Тесты totalPages ---

// TestTotalPages проверяет вычисление ceil(total / pageSize).
func TestTotalPages(t *testing.T) {
	cases := []struct {
		total    int
		pageSize int
		want     int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{25, 25, 1},
		{25, 7, 4},
	}

	for _, c := range cases {
		if got := totalPages(c.total, c.pageSize); got != c.want {
			t.Errorf("totalPages(%d, %d) = %d, ожидался %d", c.total, c.pageSize, got, c.want)
		}
	}
}

// TestTotalPages_ZeroPageSize проверяет защиту от деления на ноль.
func TestTotalPages_ZeroPageSize(t *testing.T) {
	if got := totalPages(10, 0); got != 0 {
		t.Errorf("totalPages(10, 0) = %d, ожидался 0", got)
	}
}

// --- Тесты softDeletedFilter ---

// TestSoftDeletedFilter проверяет условие фильтрации удалённых записей.
func TestSoftDeletedFilter(t *testing.T) {
	if got := softDeletedFilter(true); got != "" {
		t.Errorf("softDeletedFilter(true) = %q, ожидалась пустая строка", got)
	}
	if got := softDeletedFilter(false); got != " AND deleted_at IS NULL" {
		t.Errorf("softDeletedFilter(false) = %q, ожидался ' AND deleted_at IS NULL'", got)
	}
}
