// Пакет config — загрузка и валидация конфигурации Files Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Files Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 9000-9009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// --- Хранилище файлов ---

	// BasePath — корневая директория blob-хранилища
	BasePath string
	// MaxFileSize — максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// AllowedExtensions — множество разрешённых расширений (нижний регистр, без точки)
	AllowedExtensions map[string]struct{}

	// --- Bases service (делегированные проверки прав) ---

	// BasesURL — базовый URL Bases service
	BasesURL string
	// BasesTimeout — таймаут HTTP-запросов к Bases service
	BasesTimeout time.Duration

	// --- Идентификация ---

	// UserIDHeader — заголовок с UUID аутентифицированного пользователя.
	// Заполняется API Gateway, Files Module доверяет значению полностью.
	UserIDHeader string
	// InternalAllowedHosts — хосты, которым разрешён доступ к /internal API
	InternalAllowedHosts []string

	// --- Кэш метаданных ---

	// CacheSize — максимальное количество записей LRU-кэша
	CacheSize int
	// CacheTTL — время жизни записи кэша
	CacheTTL time.Duration

	// --- topologymetrics ---

	// DephealthGroup — имя группы в метриках dephealth
	DephealthGroup string
	// DephealthCheckInterval — интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// DephealthIsEntry — лейбл isentry=yes для entry-point сервисов
	DephealthIsEntry bool
}

// Расширения, разрешённые по умолчанию (FM_ALLOWED_EXTENSIONS).
const defaultAllowedExtensions = "pdf,doc,docx,xls,xlsx,ppt,pptx,txt,markdown,md,jpg,jpeg,png"

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FM_PORT — порт HTTP-сервера (по умолчанию 9001)
	cfg.Port, err = getEnvInt("FM_PORT", 9001)
	if err != nil {
		return nil, fmt.Errorf("FM_PORT: %w", err)
	}

	// FM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("FM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}

	// FM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("FM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("FM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// FM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("FM_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("FM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FM_DB_PORT: %w", err)
	}
	cfg.DBUser = getEnvDefault("FM_DB_USER", "postgres")
	cfg.DBPassword = getEnvDefault("FM_DB_PASSWORD", "postgres")
	cfg.DBName = getEnvDefault("FM_DB_NAME", "workbench-files")
	cfg.DBSSLMode = getEnvDefault("FM_DB_SSLMODE", "disable")

	// --- Хранилище файлов ---

	// FM_BASE_PATH — корневая директория blob-хранилища (обязательная)
	cfg.BasePath, err = getEnvRequired("FM_BASE_PATH")
	if err != nil {
		return nil, err
	}

	// FM_MAX_FILE_SIZE_MB — максимальный размер файла в мегабайтах (по умолчанию 100)
	maxSizeMB, err := getEnvInt("FM_MAX_FILE_SIZE_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("FM_MAX_FILE_SIZE_MB: %w", err)
	}
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("FM_MAX_FILE_SIZE_MB: значение должно быть > 0, получено %d", maxSizeMB)
	}
	cfg.MaxFileSize = int64(maxSizeMB) * 1024 * 1024

	// FM_ALLOWED_EXTENSIONS — список разрешённых расширений через запятую
	cfg.AllowedExtensions = parseExtensions(getEnvDefault("FM_ALLOWED_EXTENSIONS", defaultAllowedExtensions))
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("FM_ALLOWED_EXTENSIONS: список расширений пуст")
	}

	// --- Bases service ---

	cfg.BasesURL = getEnvDefault("FM_BASES_URL", "http://localhost:9005")
	cfg.BasesTimeout, err = getEnvDuration("FM_BASES_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_BASES_TIMEOUT: %w", err)
	}

	// --- Идентификация ---

	cfg.UserIDHeader = getEnvDefault("FM_USER_ID_HEADER", "X-User-ID")
	if hosts := getEnvDefault("FM_INTERNAL_ALLOWED_HOSTS", ""); hosts != "" {
		for _, h := range strings.Split(hosts, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.InternalAllowedHosts = append(cfg.InternalAllowedHosts, h)
			}
		}
	}

	// --- Кэш метаданных ---

	cfg.CacheSize, err = getEnvInt("FM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FM_CACHE_SIZE: %w", err)
	}
	cfg.CacheTTL, err = getEnvDuration("FM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FM_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("FM_DEPHEALTH_GROUP", "workbench")
	cfg.DephealthCheckInterval, err = getEnvDuration("FM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("FM_DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("FM_DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// ExtensionAllowed проверяет, входит ли расширение в разрешённый список.
// Расширение сравнивается в нижнем регистре, без ведущей точки.
func (c *Config) ExtensionAllowed(ext string) bool {
	_, ok := c.AllowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// AllowedExtensionsList возвращает разрешённые расширения списком
// (для диагностических сообщений об ошибках).
func (c *Config) AllowedExtensionsList() []string {
	list := make([]string, 0, len(c.AllowedExtensions))
	for ext := range c.AllowedExtensions {
		list = append(list, ext)
	}
	return list
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// parseExtensions разбирает список расширений через запятую в множество.
// Расширения нормализуются: нижний регистр, без точки, без пробелов.
func parseExtensions(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
