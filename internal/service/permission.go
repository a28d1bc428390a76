// permission.go — сервис авторизации доступа к файлам.
// Композиция локальной проверки владения (repository) и делегированной
// проверки через Bases service (basesclient) в одно решение.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/workbench/files-module/internal/basesclient"
	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
)

// Prometheus-метрики проверок прав.
var permissionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fm_permission_checks_total",
	Help: "Общее количество проверок прав доступа (по исходу).",
}, []string{"outcome"})

// PermissionDelegate — делегированная проверка прав во внешнем сервисе.
// Реализуется basesclient.Client.
type PermissionDelegate interface {
	Check(ctx context.Context, userID string, check basesclient.PermissionCheck) (bool, error)
}

// PermissionService — сервис авторизации доступа к файлам.
type PermissionService struct {
	permRepo repository.PermissionRepository
	delegate PermissionDelegate
	logger   *slog.Logger
}

// NewPermissionService создаёт сервис авторизации.
func NewPermissionService(
	permRepo repository.PermissionRepository,
	delegate PermissionDelegate,
	logger *slog.Logger,
) *PermissionService {
	return &PermissionService{
		permRepo: permRepo,
		delegate: delegate,
		logger:   logger.With(slog.String("component", "permission_service")),
	}
}

// CheckFilePermission — проверка прав без контекста авторизации.
// Только локальная проверка владения, сетевых вызовов нет.
func (ps *PermissionService) CheckFilePermission(ctx context.Context, fileID, userID string) (bool, error) {
	isOwner, err := ps.permRepo.IsOwner(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	if isOwner {
		permissionChecksTotal.WithLabelValues("owner").Inc()
		return true, nil
	}
	permissionChecksTotal.WithLabelValues("denied").Inc()
	return false, nil
}

// CheckFilePermissionWithContext — проверка прав с контекстом авторизации.
// Сначала дешёвая локальная проверка владения; делегированная проверка
// выполняется только если владение не подтверждено (short-circuit —
// при владении Bases service не вызывается вовсе).
//
// ErrServiceUnavailable от делегата пробрасывается вызывающему коду:
// технический сбой не маскируется под отказ в доступе.
func (ps *PermissionService) CheckFilePermissionWithContext(
	ctx context.Context,
	fileID, userID string,
	authCtx model.AuthorizationContext,
) (bool, error) {
	isOwner, err := ps.permRepo.IsOwner(ctx, fileID, userID)
	if err != nil {
		return false, err
	}
	if isOwner {
		permissionChecksTotal.WithLabelValues("owner").Inc()
		return true, nil
	}

	granted, err := ps.delegate.Check(ctx, userID, basesclient.PermissionCheck{
		PrincipalID:  userID,
		ObjectID:     fileID,
		AttachmentID: authCtx.AttachmentID,
		BaseID:       authCtx.BaseID,
		FolderID:     authCtx.FolderID,
	})
	if err != nil {
		permissionChecksTotal.WithLabelValues("unavailable").Inc()
		return false, err
	}
	if granted {
		permissionChecksTotal.WithLabelValues("delegated").Inc()
		ps.logger.Debug("Доступ разрешён делегированной проверкой",
			slog.String("file_id", fileID),
			slog.String("user_id", userID),
			slog.String("attachment_id", authCtx.AttachmentID),
		)
		return true, nil
	}
	permissionChecksTotal.WithLabelValues("denied").Inc()
	return false, nil
}
