// Пакет server — HTTP-сервер Files Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/workbench/files-module/internal/api/handlers"
	"github.com/arturkryukov/workbench/files-module/internal/api/middleware"
	"github.com/arturkryukov/workbench/files-module/internal/config"
)

// Server — HTTP-сервер Files Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
//
// Идентификация применяется только к /api/v1: health endpoints и
// внутренний API работают без пользовательского заголовка.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	internal *handlers.InternalHandler,
) *Server {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger, cfg.UserIDHeader))

	// Health и метрики — без идентификации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	// Внутренний API — host allowlist вместо пользовательской идентификации
	router.Get("/internal/files/{file_id}/content", internal.GetFileContent)

	// Пользовательский API — идентификация через доверенный заголовок
	router.Route("/api/v1/files", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.UserIDHeader))

		r.Get("/", api.ListFiles)
		r.Post("/", api.CreateFiles)
		r.Post("/details", api.FileDetails)
		r.Post("/batch-get", api.BatchGetFiles)

		r.Get("/{file_id}", api.GetFile)
		r.Get("/{file_id}/content", api.GetFileContent)
		r.Put("/{file_id}", api.UpdateFile)
		r.Delete("/{file_id}", api.DeleteFile)
		r.Post("/{file_id}/soft-delete", api.SoftDeleteFile)
		r.Post("/{file_id}/restore", api.RestoreFile)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
