package enrichment

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/observability"
)

const (
	// warmupCap bounds the warming threshold for very large caches.
	warmupCap = 50
	// healthyHitRatePct is the hit-rate floor for a warmed-up cache.
	healthyHitRatePct = 30.0
)

// Config configures the enrichment cache.
type Config struct {
	// MaxSize bounds the number of cached records; the oldest entry is
	// evicted once the cache grows past it.
	MaxSize int

	// LoTWMaxAgeDays is the freshness threshold for LoTW membership: a
	// station whose last upload is at least this many days old counts
	// as inactive.
	LoTWMaxAgeDays int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 1000, LoTWMaxAgeDays: 365}
}

// Cache is a bounded FIFO cache of enrichment records keyed by spot id.
// A hit returns the cached record without touching the lookup service;
// a miss performs one synchronous lookup and stores the result. Lookup
// failures are not cached, so the next spot with the same id retries.
type Cache struct {
	cfg    Config
	lookup Lookup
	logger *log.Logger

	mu        sync.Mutex
	records   map[string]*domain.EnrichmentRecord
	order     []string
	processed int64
	hits      int64
	misses    int64
}

// NewCache creates a cache over the given lookup service. Zero values
// in cfg fall back to the defaults.
func NewCache(cfg Config, lookup Lookup, logger *log.Logger) *Cache {
	def := DefaultConfig()
	if cfg.MaxSize == 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.LoTWMaxAgeDays == 0 {
		cfg.LoTWMaxAgeDays = def.LoTWMaxAgeDays
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		cfg:     cfg,
		lookup:  lookup,
		logger:  logger,
		records: make(map[string]*domain.EnrichmentRecord),
	}
}

// Enrich attaches an EnrichmentRecord to the spot, from cache or from
// the lookup service. The cache lock is not held across the lookup
// call, so a slow lookup blocks only the spot being processed; the
// cost is that concurrent misses on the same id may each perform a
// lookup.
func (c *Cache) Enrich(ctx context.Context, spot *domain.DxSpot) (*domain.EnrichmentRecord, error) {
	id := spot.ID()

	c.mu.Lock()
	c.processed++
	if rec, ok := c.records[id]; ok {
		c.hits++
		size := len(c.records)
		c.mu.Unlock()
		observability.RecordCacheLookup(true, size)
		spot.Enrichment = rec
		return rec, nil
	}
	c.misses++
	size := len(c.records)
	c.mu.Unlock()
	observability.RecordCacheLookup(false, size)

	res, err := c.lookup.Lookup(ctx, spot.Call, spot.Band, spot.Mode)
	if err != nil {
		return nil, err
	}
	rec := c.toRecord(res)

	c.mu.Lock()
	if _, ok := c.records[id]; !ok {
		c.order = append(c.order, id)
	}
	c.records[id] = rec
	for len(c.records) > c.cfg.MaxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.records, oldest)
	}
	c.mu.Unlock()

	spot.Enrichment = rec
	return rec, nil
}

// Health returns a snapshot of the cache's counters and derived state.
func (c *Cache) Health() domain.CacheHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := domain.CacheHealth{
		Size:      len(c.records),
		MaxSize:   c.cfg.MaxSize,
		Processed: c.processed,
		Hits:      c.hits,
		Misses:    c.misses,
	}
	if c.processed > 0 {
		h.HitRate = float64(c.hits) / float64(c.processed) * 100
	}

	warmup := c.cfg.MaxSize / 2
	if warmup > warmupCap {
		warmup = warmupCap
	}
	switch {
	case h.Size < warmup:
		h.State = domain.CacheWarming
	case h.HitRate > healthyHitRatePct:
		h.State = domain.CacheHealthy
	default:
		h.State = domain.CacheUnhealthy
	}
	return h
}

// toRecord converts a raw lookup answer into a record, deriving LoTW
// membership from the days-since-upload figure.
func (c *Cache) toRecord(res *LookupResult) *domain.EnrichmentRecord {
	return &domain.EnrichmentRecord{
		Worked:         res.Worked,
		WorkedMode:     res.WorkedMode,
		WorkedBand:     res.WorkedBand,
		WorkedBandMode: res.WorkedBandMode,

		Confirmed:         res.Confirmed,
		ConfirmedMode:     res.ConfirmedMode,
		ConfirmedBand:     res.ConfirmedBand,
		ConfirmedBandMode: res.ConfirmedBandMode,

		DXCC:      res.DXCC,
		Country:   res.Country,
		Continent: res.Continent,
		CQZone:    res.CQZone,
		ITUZone:   res.ITUZone,

		LoTWMember: c.lotwMember(res),
	}
}

// lotwMember derives membership: a station is an active member when its
// last upload is fresh enough. A non-numeric days figure counts as
// inactive.
func (c *Cache) lotwMember(res *LookupResult) bool {
	if res.NotLoTWMember {
		return false
	}
	days, err := strconv.Atoi(strings.TrimSpace(res.DaysSinceLoTWUpload))
	if err != nil {
		return false
	}
	return days == 0 || days < c.cfg.LoTWMaxAgeDays
}
