// Пакет filestore — операции с физическими файлами на диске.
// Каждый blob получает свежее uuid-имя в директории владельца:
// коллизии записи структурно невозможны, пользовательское имя
// никогда не попадает в путь (нет path traversal).
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// basePath — корневая директория хранения файлов (FM_BASE_PATH)
	basePath string
}

// New создаёт новый FileStore. Проверяет и создаёт корневую директорию,
// если она не существует.
func New(basePath string) (*FileStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения абсолютного пути %s: %w", basePath, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", abs, err)
	}

	return &FileStore{basePath: abs}, nil
}

// AllocatePath выделяет новый уникальный путь для файла в директории
// владельца (создаётся при необходимости). Оригинальное базовое имя
// отбрасывается, расширение сохраняется.
// Формат: {basePath}/{ownerID}/{uuid}{.ext}
func (fs *FileStore) AllocatePath(filename, ownerID string) (string, error) {
	dir := filepath.Join(fs.basePath, ownerID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("не удалось создать директорию владельца %s: %w", dir, err)
	}

	// TODO: при росте количества файлов разбить директорию владельца
	// на поддиректории по префиксу uuid
	name := uuid.New().String() + strings.ToLower(filepath.Ext(filename))

	return filepath.Join(dir, name), nil
}

// Save записывает данные из reader по указанному пути.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
// Возвращает количество записанных байт.
func (fs *FileStore) Save(reader io.Reader, path string) (int64, error) {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает файл для чтения и возвращает *os.File.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	return f, nil
}

// Delete удаляет файл с диска.
// Идемпотентна: возвращает nil, если файл уже не существует.
func (fs *FileStore) Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (fs *FileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size возвращает размер файла на диске.
func (fs *FileStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", path, err)
	}
	return info.Size(), nil
}

// BasePath возвращает корневую директорию хранилища.
func (fs *FileStore) BasePath() string {
	return fs.basePath
}
