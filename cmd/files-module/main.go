// Точка входа Files Module — сервис хранения файлов workbench.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует blob-хранилище, клиент Bases service, сервисный слой
// и API handlers, запускает topologymetrics и HTTP-сервер
// с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/workbench/files-module/internal/api/handlers"
	"github.com/arturkryukov/workbench/files-module/internal/basesclient"
	"github.com/arturkryukov/workbench/files-module/internal/config"
	"github.com/arturkryukov/workbench/files-module/internal/database"
	"github.com/arturkryukov/workbench/files-module/internal/repository"
	"github.com/arturkryukov/workbench/files-module/internal/server"
	"github.com/arturkryukov/workbench/files-module/internal/service"
	"github.com/arturkryukov/workbench/files-module/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Files Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("FM_DEPHEALTH_GROUP") == "" {
		logger.Warn("FM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Blob-хранилище на локальном диске
	store, err := filestore.New(cfg.BasePath)
	if err != nil {
		logger.Error("Ошибка инициализации blob-хранилища",
			slog.String("base_path", cfg.BasePath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Blob-хранилище инициализировано", slog.String("base_path", store.BasePath()))

	// 6. Клиент Bases service (делегированные проверки прав)
	basesClient := basesclient.New(cfg.BasesURL, cfg.UserIDHeader, cfg.BasesTimeout, logger)
	logger.Info("Клиент Bases service создан", slog.String("url", cfg.BasesURL))

	// 7. Repositories
	fileRepo := repository.NewFileRepository(pool)
	permRepo := repository.NewPermissionRepository(pool)

	// 8. Services
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	permSvc := service.NewPermissionService(permRepo, basesClient, logger)
	fileSvc := service.NewFileService(cfg, pool, fileRepo, store, permSvc, cacheSvc, logger)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + Bases service)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"files-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.BasesURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(fileSvc, permSvc, logger)
	internalHandler := handlers.NewInternalHandler(apiHandler, cfg.InternalAllowedHosts, logger)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, healthHandler, internalHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Files Module остановлен")
}
