package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arturkryukov/workbench/files-module/internal/basesclient"
	"github.com/arturkryukov/workbench/files-module/internal/config"
	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
)

// Моки для тестов сервисного слоя. Каждое поведение задаётся полем-функцией;
// незаданное поле означает, что вызов в тесте не ожидается.

// mockFileRepo — мок repository.FileRepository.
type mockFileRepo struct {
	GetFunc              func(ctx context.Context, id string, includeSoftDeleted bool) (*model.File, error)
	GetByOwnerFunc       func(ctx context.Context, ownerID string, includeSoftDeleted bool) ([]*model.File, error)
	GetByIDsFunc         func(ctx context.Context, ids []string, includeSoftDeleted bool) ([]*model.File, error)
	GetByIDsAndOwnerFunc func(ctx context.Context, ids []string, ownerID string, includeSoftDeleted bool) ([]*model.File, error)
	GetPageFunc          func(ctx context.Context, ownerID string, params repository.PageParams, includeSoftDeleted bool) (*repository.Page, error)
	CreateFunc           func(ctx context.Context, f *model.File) error
	UpdateExtraFunc      func(ctx context.Context, id string, extra map[string]any) (*model.File, error)
	SoftDeleteFunc       func(ctx context.Context, id string) (*model.File, error)
	RestoreFunc          func(ctx context.Context, id string) (*model.File, error)
	HardDeleteFunc       func(ctx context.Context, id string) error
}

func (m *mockFileRepo) Get(ctx context.Context, id string, incl bool) (*model.File, error) {
	return m.GetFunc(ctx, id, incl)
}

func (m *mockFileRepo) GetByOwner(ctx context.Context, ownerID string, incl bool) ([]*model.File, error) {
	return m.GetByOwnerFunc(ctx, ownerID, incl)
}

func (m *mockFileRepo) GetByIDs(ctx context.Context, ids []string, incl bool) ([]*model.File, error) {
	return m.GetByIDsFunc(ctx, ids, incl)
}

func (m *mockFileRepo) GetByIDsAndOwner(ctx context.Context, ids []string, ownerID string, incl bool) ([]*model.File, error) {
	return m.GetByIDsAndOwnerFunc(ctx, ids, ownerID, incl)
}

func (m *mockFileRepo) GetPage(ctx context.Context, ownerID string, params repository.PageParams, incl bool) (*repository.Page, error) {
	return m.GetPageFunc(ctx, ownerID, params, incl)
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.File) error {
	return m.CreateFunc(ctx, f)
}

func (m *mockFileRepo) UpdateExtra(ctx context.Context, id string, extra map[string]any) (*model.File, error) {
	return m.UpdateExtraFunc(ctx, id, extra)
}

func (m *mockFileRepo) SoftDelete(ctx context.Context, id string) (*model.File, error) {
	return m.SoftDeleteFunc(ctx, id)
}

func (m *mockFileRepo) Restore(ctx context.Context, id string) (*model.File, error) {
	return m.RestoreFunc(ctx, id)
}

func (m *mockFileRepo) HardDelete(ctx context.Context, id string) error {
	return m.HardDeleteFunc(ctx, id)
}

// mockPermRepo — мок repository.PermissionRepository.
type mockPermRepo struct {
	IsOwnerFunc func(ctx context.Context, fileID, userID string) (bool, error)
}

func (m *mockPermRepo) IsOwner(ctx context.Context, fileID, userID string) (bool, error) {
	return m.IsOwnerFunc(ctx, fileID, userID)
}

// mockDelegate — мок делегированной проверки прав (basesclient.Client).
type mockDelegate struct {
	CheckFunc func(ctx context.Context, userID string, check basesclient.PermissionCheck) (bool, error)
}

func (m *mockDelegate) Check(ctx context.Context, userID string, check basesclient.PermissionCheck) (bool, error) {
	return m.CheckFunc(ctx, userID, check)
}

// mockStorage — мок blob-хранилища.
type mockStorage struct {
	AllocatePathFunc func(filename, ownerID string) (string, error)
	SaveFunc         func(reader io.Reader, path string) (int64, error)
	OpenFunc         func(path string) (*os.File, error)
	DeleteFunc       func(path string) error
	SizeFunc         func(path string) (int64, error)
}

func (m *mockStorage) AllocatePath(filename, ownerID string) (string, error) {
	return m.AllocatePathFunc(filename, ownerID)
}

func (m *mockStorage) Save(reader io.Reader, path string) (int64, error) {
	return m.SaveFunc(reader, path)
}

func (m *mockStorage) Open(path string) (*os.File, error) {
	return m.OpenFunc(path)
}

func (m *mockStorage) Delete(path string) error {
	return m.DeleteFunc(path)
}

func (m *mockStorage) Size(path string) (int64, error) {
	return m.SizeFunc(path)
}

// fakeTx — фиктивная транзакция для тестов HardDelete.
// Встраивает pgx.Tx и переопределяет только используемые методы;
// фиксирует факты Exec/Commit/Rollback.
type fakeTx struct {
	pgx.Tx
	execErr    error
	execCalled bool
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	t.execCalled = true
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

// mockBeginner — мок TxBeginner, возвращающий заданную fakeTx.
type mockBeginner struct {
	tx *fakeTx
}

func (m *mockBeginner) Begin(context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

// testConfig возвращает конфигурацию для тестов: лимит 1 МБ,
// разрешены pdf и txt.
func testConfig() *config.Config {
	return &config.Config{
		MaxFileSize: 1024 * 1024,
		AllowedExtensions: map[string]struct{}{
			"pdf": {},
			"txt": {},
		},
		CacheSize: 16,
		CacheTTL:  time.Minute,
	}
}

// testLogger — логгер, пишущий в никуда.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
