// file.go — сервис работы с файлами: создание (upload / adoption),
// чтение, постраничный листинг, batch-выборки с фильтрацией по правам,
// обновление extra, soft/hard delete.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/workbench/files-module/internal/config"
	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
)

// Prometheus-метрики файловых операций.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_uploads_total",
		Help: "Общее количество загрузок файлов (по статусу).",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_upload_bytes_total",
		Help: "Общее количество записанных при загрузке байт.",
	})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fm_deletes_total",
		Help: "Общее количество удалений файлов (по виду: soft, restore, hard).",
	}, []string{"mode"})
)

// BlobStorage — операции с физическими файлами.
// Реализуется filestore.FileStore.
type BlobStorage interface {
	AllocatePath(filename, ownerID string) (string, error)
	Save(reader io.Reader, path string) (int64, error)
	Open(path string) (*os.File, error)
	Delete(path string) error
	Size(path string) (int64, error)
}

// TxBeginner — открытие транзакции PostgreSQL.
// Реализуется *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BatchGetItem — один элемент batch-запроса.
// AttachmentID выбирает вид проверки прав: при его наличии выполняется
// делегированная проверка с контекстом, иначе — только владение.
type BatchGetItem struct {
	FileID       string `json:"file_id"`
	AttachmentID string `json:"attachment_id,omitempty"`
	BaseID       string `json:"base_id,omitempty"`
	FolderID     string `json:"folder_id,omitempty"`
}

// LocalFileCreateRequest — запрос на регистрацию уже существующего
// на диске файла (adoption: путь записывается, байты не копируются).
type LocalFileCreateRequest struct {
	Path     string         `json:"path"`
	Filename string         `json:"filename,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// FileService — оркестратор файловых операций.
// Координирует repository, filestore и PermissionService.
type FileService struct {
	cfg      *config.Config
	db       TxBeginner
	fileRepo repository.FileRepository
	storage  BlobStorage
	perms    *PermissionService
	cache    *CacheService
	logger   *slog.Logger
}

// NewFileService создаёт сервис работы с файлами.
// cache может быть nil — кэширование тогда отключено.
func NewFileService(
	cfg *config.Config,
	db TxBeginner,
	fileRepo repository.FileRepository,
	storage BlobStorage,
	perms *PermissionService,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		cfg:      cfg,
		db:       db,
		fileRepo: fileRepo,
		storage:  storage,
		perms:    perms,
		cache:    cache,
		logger:   logger.With(slog.String("component", "file_service")),
	}
}

// Get возвращает метаданные файла по id (включая soft-deleted).
// ErrNotFound репозитория транслируется в ErrFileNotFound.
func (s *FileService) Get(ctx context.Context, id string) (*model.File, error) {
	if s.cache != nil {
		if f, ok := s.cache.Get(id); ok {
			return f, nil
		}
	}

	f, err := s.fileRepo.Get(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(id, f)
	}
	return f, nil
}

// ListByOwner возвращает страницу файлов пользователя.
// Параметры нормализуются: page >= 1, page_size >= 1 (по умолчанию 10).
// Страница за пределами выборки — пустой список с заполненными total/pages.
func (s *FileService) ListByOwner(ctx context.Context, ownerID string, params repository.PageParams) (*repository.Page, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 10
	}

	return s.fileRepo.GetPage(ctx, ownerID, params, true)
}

// GetManyByIDs возвращает файлы из списка, принадлежащие пользователю.
// Дешёвый batch-путь: фильтрация по владению на уровне запроса,
// делегированные проверки не выполняются. Пустой результат — пустой
// срез, не nil: на HTTP-границе он сериализуется в [].
func (s *FileService) GetManyByIDs(ctx context.Context, ids []string, ownerID string) ([]*model.File, error) {
	files, err := s.fileRepo.GetByIDsAndOwner(ctx, ids, ownerID, true)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*model.File{}
	}
	return files, nil
}

// BatchGet — batch-выборка с поэлементной проверкой прав.
// Неизвестные id молча пропускаются (в batch-режиме это не ошибка).
// Для элементов с attachment_id выполняется делегированная проверка,
// для остальных — только владение. Результат — отфильтрованное
// подмножество в порядке входных элементов.
//
// ErrServiceUnavailable от делегированной проверки пробрасывается:
// частичный результат при сбое Bases service не возвращается.
func (s *FileService) BatchGet(ctx context.Context, items []BatchGetItem, userID string) ([]*model.File, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.FileID)
	}

	files, err := s.fileRepo.GetByIDs(ctx, ids, true)
	if err != nil {
		return nil, err
	}

	filesByID := make(map[string]*model.File, len(files))
	for _, f := range files {
		filesByID[f.ID] = f
	}

	allowed := make([]*model.File, 0, len(items))
	for _, item := range items {
		f, ok := filesByID[item.FileID]
		if !ok {
			continue
		}

		var granted bool
		if item.AttachmentID != "" {
			granted, err = s.perms.CheckFilePermissionWithContext(ctx, f.ID, userID, model.AuthorizationContext{
				AttachmentID: item.AttachmentID,
				BaseID:       item.BaseID,
				FolderID:     item.FolderID,
			})
		} else {
			granted, err = s.perms.CheckFilePermission(ctx, f.ID, userID)
		}
		if err != nil {
			return nil, err
		}

		if granted {
			allowed = append(allowed, f)
		}
	}

	return allowed, nil
}

// CreateFromUpload создаёт файл из загруженных байт.
// Порядок строгий: сначала вся валидация, потом запись blob, потом
// запись метаданных — отклонённая загрузка не оставляет побочных эффектов.
func (s *FileService) CreateFromUpload(
	ctx context.Context,
	reader io.Reader,
	filename string,
	sizeBytes int64,
	ownerID string,
	extra map[string]any,
) (*model.File, error) {
	if err := s.validateSize(sizeBytes); err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	ext, err := s.validateExtension(filename)
	if err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := validateFilename(filename); err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	path, err := s.storage.AllocatePath(filename, ownerID)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("выделение пути хранения: %w", err)
	}

	written, err := s.storage.Save(reader, path)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("запись blob: %w", err)
	}

	f := &model.File{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: path,
		SizeBytes:   written,
		Extension:   ext,
		Extra:       extra,
	}

	if err := s.fileRepo.Create(ctx, f); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		// Blob без записи метаданных — допустимый осиротевший мусор,
		// но подчищаем его сразу, пока путь известен
		if delErr := s.storage.Delete(path); delErr != nil {
			s.logger.Warn("Не удалось удалить blob после ошибки создания записи",
				slog.String("path", path),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	uploadBytesTotal.Add(float64(written))
	s.logger.Info("Файл загружен",
		slog.String("file_id", f.ID),
		slog.String("owner_id", ownerID),
		slog.Int64("size_bytes", written),
		slog.String("extension", ext),
	)
	return f, nil
}

// CreateFromLocal регистрирует уже существующий на диске файл.
// Байты не копируются — путь записывается как есть (adoption).
// Валидируется расширение самого пути и, если задано отдельное
// отображаемое имя, его расширение тоже.
func (s *FileService) CreateFromLocal(ctx context.Context, req LocalFileCreateRequest, ownerID string) (*model.File, error) {
	size, err := s.storage.Size(req.Path)
	if err != nil {
		return nil, fmt.Errorf("файл по указанному пути недоступен: %w", err)
	}

	if err := s.validateSize(size); err != nil {
		return nil, err
	}
	ext, err := s.validateExtension(req.Path)
	if err != nil {
		return nil, err
	}
	if req.Filename != "" {
		if _, err := s.validateExtension(req.Filename); err != nil {
			return nil, err
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}
	if err := validateFilename(filename); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("определение абсолютного пути: %w", err)
	}

	f := &model.File{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: abs,
		SizeBytes:   size,
		Extension:   ext,
		Extra:       req.Extra,
	}

	if err := s.fileRepo.Create(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("Локальный файл зарегистрирован",
		slog.String("file_id", f.ID),
		slog.String("owner_id", ownerID),
		slog.String("path", abs),
	)
	return f, nil
}

// OpenContent возвращает метаданные и открытый blob файла.
// Закрытие reader — обязанность вызывающего кода.
func (s *FileService) OpenContent(ctx context.Context, id string) (*model.File, io.ReadCloser, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.storage.Open(f.StoragePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Запись есть, blob утерян — для клиента файла нет
			s.logger.Error("Blob отсутствует на диске при существующей записи",
				slog.String("file_id", id),
				slog.String("path", f.StoragePath),
			)
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("открытие blob: %w", err)
	}
	return f, rc, nil
}

// UpdateExtra полностью заменяет extra файла (merge не выполняется).
func (s *FileService) UpdateExtra(ctx context.Context, id string, extra map[string]any) (*model.File, error) {
	f, err := s.fileRepo.UpdateExtra(ctx, id, extra)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Delete(id)
	}
	return f, nil
}

// HardDelete удаляет запись и blob файла.
//
// Порядок: запись удаляется внутри транзакции, затем удаляется blob,
// и только после успешного удаления blob транзакция фиксируется.
// Сбой диска откатывает транзакцию — запись остаётся, висячей строки
// без blob не возникает. Осиротевший blob без строки (обратное
// направление) допустим.
func (s *FileService) HardDelete(ctx context.Context, id string) error {
	f, err := s.fileRepo.Get(ctx, id, true)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("открытие транзакции: %w", err)
	}
	// Rollback после Commit — no-op: гарантированное освобождение
	// на любом пути выхода
	defer tx.Rollback(ctx)

	txRepo := repository.NewFileRepository(tx)
	if err := txRepo.HardDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if err := s.storage.Delete(f.StoragePath); err != nil {
		return fmt.Errorf("удаление blob: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(id)
	}
	deletesTotal.WithLabelValues("hard").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", id),
		slog.String("path", f.StoragePath),
	)
	return nil
}

// SoftDelete помечает файл как удалённый. Идемпотентна.
func (s *FileService) SoftDelete(ctx context.Context, id string) (*model.File, error) {
	f, err := s.fileRepo.SoftDelete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Delete(id)
	}
	deletesTotal.WithLabelValues("soft").Inc()
	return f, nil
}

// Restore снимает отметку удаления. Идемпотентна.
func (s *FileService) Restore(ctx context.Context, id string) (*model.File, error) {
	f, err := s.fileRepo.Restore(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Delete(id)
	}
	deletesTotal.WithLabelValues("restore").Inc()
	return f, nil
}

// validateSize проверяет размер против настроенного лимита.
func (s *FileService) validateSize(sizeBytes int64) error {
	if sizeBytes > s.cfg.MaxFileSize {
		return &FileTooLargeError{Limit: s.cfg.MaxFileSize, Size: sizeBytes}
	}
	return nil
}

// validateExtension проверяет расширение имени против разрешённого списка.
// Возвращает нормализованное расширение (нижний регистр, без точки).
func (s *FileService) validateExtension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.cfg.ExtensionAllowed(ext) {
		return "", &FiletypeNotAllowedError{
			Extension: ext,
			Allowed:   s.cfg.AllowedExtensionsList(),
		}
	}
	return ext, nil
}

// validateFilename проверяет длину отображаемого имени.
func validateFilename(filename string) error {
	if len(filename) > model.MaxFilenameLength {
		return ErrFilenameTooLong
	}
	return nil
}
