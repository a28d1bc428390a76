// Пакет service — бизнес-логика Files Module.
// CacheService — LRU-кэш метаданных файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/workbench/files-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// CacheService — LRU-кэш метаданных файлов с автоматическим TTL.
// Каждый экземпляр FM имеет собственный in-memory кэш (per-instance,
// stateless архитектура). Кэшируется только одиночный read-путь;
// любая мутация инвалидирует запись.
type CacheService struct {
	cache *expirable.LRU[string, *model.File]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.File](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает File из кэша по id.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(id string) (*model.File, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(id string, file *model.File) {
	c.cache.Add(id, file)
}

// Delete удаляет запись из кэша (инвалидация при мутации).
func (c *CacheService) Delete(id string) {
	c.cache.Remove(id)
}
