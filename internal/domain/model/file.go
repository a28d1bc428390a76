// Пакет model — доменные модели Files Module.
// File — маппинг таблицы files (owned by Files Module).
package model

import "time"

// Ограничения длины строковых полей (соответствуют схеме БД).
const (
	// MaxFilenameLength — максимальная длина отображаемого имени файла.
	MaxFilenameLength = 255
	// MaxExtensionLength — максимальная длина расширения (без точки).
	MaxExtensionLength = 10
)

// File — запись файла в таблице files.
// StoragePath назначается исключительно filestore и после создания
// записи никогда не меняется.
type File struct {
	// ID — UUID файла, назначается при создании, неизменяем
	ID string `json:"id"`
	// OwnerID — UUID пользователя, создавшего файл, неизменяем
	OwnerID string `json:"owner_id"`
	// Filename — отображаемое имя файла (до 255 символов)
	Filename string `json:"filename"`
	// StoragePath — абсолютный путь к blob на диске
	StoragePath string `json:"path"`
	// SizeBytes — размер файла в байтах на момент создания
	SizeBytes int64 `json:"size_bytes"`
	// Extension — расширение в нижнем регистре без точки (до 10 символов)
	Extension string `json:"extension"`
	// Extra — произвольные структурированные атрибуты (jsonb).
	// Схема не фиксирована — сервисный слой не полагается на наличие ключей.
	Extra map[string]any `json:"extra,omitempty"`
	// CreatedAt — время создания записи (назначается сервером)
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt — время последнего изменения (обновляется при каждой мутации)
	UpdatedAt time.Time `json:"updated_at"`
	// DeletedAt — отметка soft delete, nil = файл активен
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsSoftDeleted возвращает true, если файл помечен как удалённый.
func (f *File) IsSoftDeleted() bool {
	return f.DeletedAt != nil
}

// AuthorizationContext — контекст делегированной проверки прав.
// Не персистентен: передаётся клиентом вместе с запросом и уходит
// в Bases service как есть. Наличие AttachmentID — явный признак
// делегированной проверки (для ownership-only проверки контекст не нужен).
type AuthorizationContext struct {
	// AttachmentID — UUID вложения (обязателен для делегированной проверки)
	AttachmentID string `json:"attachment_id"`
	// BaseID — UUID базы (опциональная подсказка иерархии)
	BaseID string `json:"base_id,omitempty"`
	// FolderID — UUID папки (опциональная подсказка иерархии)
	FolderID string `json:"folder_id,omitempty"`
}
