package repository

import (
	"context"
	"fmt"
)

// PermissionRepository — локальная проверка владения файлом.
// Чистый lookup в files, без сетевых вызовов.
type PermissionRepository interface {
	// IsOwner возвращает true, если файл с указанным id принадлежит пользователю.
	// Состояние soft delete не учитывается: владение проверяется и для
	// помеченных как удалённые записей.
	IsOwner(ctx context.Context, fileID, userID string) (bool, error)
}

// permissionRepo — реализация PermissionRepository через pgx.
type permissionRepo struct {
	db DBTX
}

// NewPermissionRepository создаёт репозиторий проверки владения.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) IsOwner(ctx context.Context, fileID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1 AND owner_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, fileID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки владения файлом: %w", err)
	}
	return exists, nil
}
