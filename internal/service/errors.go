// errors.go — типизированные ошибки сервисного слоя Files Module.
// Валидационные ошибки несут диагностические детали (лимит, фактическое
// значение); на HTTP-границе они отображаются в коды ошибок API.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки сервисного слоя.
var (
	// ErrFileNotFound — файл не найден. На API-границе этот исход
	// неотличим от «нет прав доступа»: обе ситуации отображаются
	// одинаково, чтобы исключить зондирование существования файлов.
	ErrFileNotFound = errors.New("файл не найден")

	// ErrFilenameTooLong — отображаемое имя файла превышает допустимую длину.
	ErrFilenameTooLong = errors.New("имя файла превышает допустимую длину")
)

// FileTooLargeError — размер загружаемого файла превышает лимит.
type FileTooLargeError struct {
	// Limit — настроенный максимальный размер в байтах
	Limit int64
	// Size — фактический размер в байтах
	Size int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("размер файла %d байт превышает лимит %d байт", e.Size, e.Limit)
}

// FiletypeNotAllowedError — расширение файла не входит в разрешённый список.
type FiletypeNotAllowedError struct {
	// Extension — расширение загружаемого файла (нормализованное)
	Extension string
	// Allowed — разрешённые расширения
	Allowed []string
}

func (e *FiletypeNotAllowedError) Error() string {
	return fmt.Sprintf("расширение %q не разрешено, допустимые: %s",
		e.Extension, strings.Join(e.Allowed, ", "))
}
