package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, owner_id, filename, storage_path, size_bytes, extension,
	extra, created_at, updated_at, deleted_at`

// Поля сортировки постраничных запросов.
const (
	OrderByCreatedAt = "created_at"
	OrderByUpdatedAt = "updated_at"
)

// Направления сортировки.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// PageParams — параметры постраничного запроса.
// Page — 1-индексированный номер страницы.
type PageParams struct {
	Page     int
	PageSize int
	// OrderBy — поле сортировки: created_at или updated_at
	OrderBy string
	// Order — направление: asc или desc
	Order string
}

// Page — страница результатов постраничного запроса.
// Total и Pages заполняются всегда, даже когда запрошенная страница
// выходит за пределы выборки (Items тогда пуст, ошибки нет).
type Page struct {
	Total    int           `json:"total"`
	Pages    int           `json:"pages"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Items    []*model.File `json:"items"`
}

// FileRepository — интерфейс CRUD для таблицы files.
// includeSoftDeleted=true включает записи с deleted_at — это значение
// по умолчанию во всех read-путях сервиса (soft delete — пометка,
// а не фильтр видимости).
type FileRepository interface {
	// Get возвращает файл по UUID.
	Get(ctx context.Context, id string, includeSoftDeleted bool) (*model.File, error)
	// GetByOwner возвращает все файлы пользователя.
	GetByOwner(ctx context.Context, ownerID string, includeSoftDeleted bool) ([]*model.File, error)
	// GetByIDs возвращает файлы по списку UUID (отсутствующие молча пропускаются).
	GetByIDs(ctx context.Context, ids []string, includeSoftDeleted bool) ([]*model.File, error)
	// GetByIDsAndOwner возвращает файлы из списка, принадлежащие пользователю.
	GetByIDsAndOwner(ctx context.Context, ids []string, ownerID string, includeSoftDeleted bool) ([]*model.File, error)
	// GetPage возвращает страницу файлов пользователя.
	GetPage(ctx context.Context, ownerID string, params PageParams, includeSoftDeleted bool) (*Page, error)
	// Create вставляет новую запись и заполняет created_at/updated_at из БД.
	Create(ctx context.Context, f *model.File) error
	// UpdateExtra полностью заменяет extra (merge не выполняется).
	UpdateExtra(ctx context.Context, id string, extra map[string]any) (*model.File, error)
	// SoftDelete проставляет deleted_at. Идемпотентна: повторный вызов
	// не меняет существующую отметку.
	SoftDelete(ctx context.Context, id string) (*model.File, error)
	// Restore сбрасывает deleted_at. Идемпотентна.
	Restore(ctx context.Context, id string) (*model.File, error)
	// HardDelete удаляет запись.
	HardDelete(ctx context.Context, id string) error
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
// db — *pgxpool.Pool или pgx.Tx (для транзакционных операций).
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// scanFile читает одну строку в model.File.
func scanFile(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.Filename, &f.StoragePath, &f.SizeBytes, &f.Extension,
		&f.Extra, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// collectFiles читает все строки результата в срез model.File.
func collectFiles(rows pgx.Rows) ([]*model.File, error) {
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f := &model.File{}
		if err := rows.Scan(
			&f.ID, &f.OwnerID, &f.Filename, &f.StoragePath, &f.SizeBytes, &f.Extension,
			&f.Extra, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// softDeletedFilter возвращает SQL-условие фильтрации soft-deleted записей.
// Пустая строка, когда удалённые записи включаются в выборку.
func softDeletedFilter(includeSoftDeleted bool) string {
	if includeSoftDeleted {
		return ""
	}
	return " AND deleted_at IS NULL"
}

func (r *fileRepo) Get(ctx context.Context, id string, includeSoftDeleted bool) (*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1%s`,
		fileColumns, softDeletedFilter(includeSoftDeleted))

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) GetByOwner(ctx context.Context, ownerID string, includeSoftDeleted bool) ([]*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE owner_id = $1%s`,
		fileColumns, softDeletedFilter(includeSoftDeleted))

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов пользователя: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) GetByIDs(ctx context.Context, ids []string, includeSoftDeleted bool) ([]*model.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = ANY($1)%s`,
		fileColumns, softDeletedFilter(includeSoftDeleted))

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов по списку id: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) GetByIDsAndOwner(ctx context.Context, ids []string, ownerID string, includeSoftDeleted bool) ([]*model.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = ANY($1) AND owner_id = $2%s`,
		fileColumns, softDeletedFilter(includeSoftDeleted))

	rows, err := r.db.Query(ctx, query, ids, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения файлов пользователя по списку id: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) GetPage(ctx context.Context, ownerID string, params PageParams, includeSoftDeleted bool) (*Page, error) {
	where := "WHERE owner_id = $1" + softDeletedFilter(includeSoftDeleted)

	// Общее количество — по полной выборке, независимо от окна страницы
	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM files %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM files %s %s LIMIT $2 OFFSET $3`,
		fileColumns, where, buildOrderBy(params.OrderBy, params.Order))

	offset := (params.Page - 1) * params.PageSize
	rows, err := r.db.Query(ctx, dataQuery, ownerID, params.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка постраничного запроса файлов: %w", err)
	}

	items, err := collectFiles(rows)
	if err != nil {
		return nil, err
	}
	if items == nil {
		// Страница за пределами выборки — пустой список, не null
		items = []*model.File{}
	}

	return &Page{
		Total:    total,
		Pages:    totalPages(total, params.PageSize),
		Page:     params.Page,
		PageSize: params.PageSize,
		Items:    items,
	}, nil
}

func (r *fileRepo) Create(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (id, owner_id, filename, storage_path, size_bytes, extension, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.OwnerID, f.Filename, f.StoragePath, f.SizeBytes, f.Extension, f.Extra,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) UpdateExtra(ctx context.Context, id string, extra map[string]any) (*model.File, error) {
	// Полная замена extra, merge не выполняется
	query := fmt.Sprintf(`
		UPDATE files
		SET extra = $2, updated_at = now()
		WHERE id = $1
		RETURNING %s`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id, extra))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления extra: %w", err)
	}
	return f, nil
}

func (r *fileRepo) SoftDelete(ctx context.Context, id string) (*model.File, error) {
	// Идемпотентность: уже проставленная отметка deleted_at не меняется
	query := fmt.Sprintf(`
		UPDATE files
		SET deleted_at = COALESCE(deleted_at, now()), updated_at = now()
		WHERE id = $1
		RETURNING %s`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка soft delete: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Restore(ctx context.Context, id string) (*model.File, error) {
	query := fmt.Sprintf(`
		UPDATE files
		SET deleted_at = NULL, updated_at = now()
		WHERE id = $1
		RETURNING %s`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка восстановления файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) HardDelete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// totalPages вычисляет количество страниц: ceil(total / pageSize).
func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// buildOrderBy строит ORDER BY с безопасным whitelist полей.
// Предотвращает SQL-инъекции — только разрешённые значения.
func buildOrderBy(orderBy, order string) string {
	// Whitelist допустимых полей сортировки
	column := OrderByUpdatedAt
	if orderBy == OrderByCreatedAt {
		column = OrderByCreatedAt
	}

	// Whitelist направлений сортировки
	direction := "DESC"
	if strings.EqualFold(order, OrderAsc) {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}
