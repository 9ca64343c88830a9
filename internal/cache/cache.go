// Package cache provides a process-local result cache for external-source
// responses, with adaptive TTL, hybrid recency/frequency eviction, and
// transparent compression of large payloads.
package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Adaptive TTL bounds and target.
const (
	// MinTTL is the floor for adaptively assigned TTLs.
	MinTTL = 15 * time.Minute
	// MaxTTL is the ceiling for adaptively assigned TTLs.
	MaxTTL = 6 * time.Hour
	// DefaultTTL is used until the hit-rate window has enough samples.
	DefaultTTL = time.Hour
	// TargetHitRate is the hit rate the adaptive TTL steers toward.
	TargetHitRate = 0.7

	// compressionThreshold is the payload size above which compression is attempted.
	compressionThreshold = 10 * 1024
	// compressionMinSavings is the fraction of the original size a compressed
	// payload must save to be kept compressed.
	compressionMinSavings = 0.2

	// adaptiveWindowSize is the request count at which recent hit-rate
	// counters are halved, giving an exponentially decaying window.
	adaptiveWindowSize = 100
	// adaptiveMinSamples is the minimum recent requests before the adaptive
	// TTL departs from the default.
	adaptiveMinSamples = 10
)

// Config holds cache configuration. Zero values fall back to defaults.
type Config struct {
	// MaxEntries caps the number of cached entries. Default: 2000.
	MaxEntries int
	// MaxBytes caps the total stored payload size. Default: 256MB.
	MaxBytes int64
	// DefaultTTL is the TTL assigned before adaptation kicks in. Default: 1h.
	DefaultTTL time.Duration
	// DisableCompression turns off compression of large payloads.
	DisableCompression bool
	// DisableAdaptiveTTL pins the assigned TTL to DefaultTTL.
	DisableAdaptiveTTL bool
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries           int
	Bytes             int64
	Hits              uint64
	Misses            uint64
	Evictions         uint64
	Expirations       uint64
	Compressions      uint64
	BytesSaved        uint64
	CurrentTTLSeconds int
}

// entry is a single cached payload with bookkeeping for TTL and eviction.
type entry struct {
	payload      []byte
	compressed   bool
	createdAt    time.Time
	ttl          time.Duration
	frequency    int
	lastAccessed time.Time
	size         int64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// evictionScore returns the hybrid LRU/LFU score; lower scores evict first.
// Frequently used recent entries score high, stale ones decay by log of age.
func (e *entry) evictionScore(now time.Time) float64 {
	age := now.Sub(e.lastAccessed).Seconds()
	return float64(e.frequency) / math.Log(age+2)
}

// ResultCache is a thread-safe in-memory cache keyed by normalized request.
// It is a point cache: no cross-process consistency is claimed.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	bytes   int64
	cfg     Config

	// Adaptive TTL window.
	recentHits     int
	recentRequests int
	currentTTL     time.Duration

	hits         uint64
	misses       uint64
	evictions    uint64
	expirations  uint64
	compressions uint64
	bytesSaved   uint64

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a ResultCache with the given configuration.
func New(cfg Config) *ResultCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 2000
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 256 * 1024 * 1024
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}

	return &ResultCache{
		entries:    make(map[string]*entry),
		cfg:        cfg,
		currentTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

// Key derives a cache key from a query, source identifier, and extra
// parameters. The query is normalized so trivially different spellings of the
// same request share an entry; the result is an MD5 hex digest.
func Key(query, source string, params map[string]string) string {
	parts := []string{normalizeQuery(query), source}

	if len(params) > 0 {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, name+"="+params[name])
		}
	}

	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// queryTokenFolds maps verbose query-syntax tokens to their short synonyms so
// both spellings hash identically. Order matters: longer tokens fold first.
var queryTokenFolds = [...][2]string{
	{"title-abs-key", "tak"},
	{"title-abs", "ta"},
	{"pubyear", "py"},
	{"language", "lang"},
}

// normalizeQuery lowercases, collapses whitespace, and folds synonymous
// query-syntax tokens.
func normalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.Join(strings.Fields(normalized), " ")

	for _, fold := range queryTokenFolds {
		normalized = strings.ReplaceAll(normalized, fold[0], fold[1])
	}

	return normalized
}

// Get returns the cached payload for key, or found=false on miss or expiry.
func (c *ResultCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentRequests++

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := c.now()
	if e.expired(now) {
		c.removeLocked(key, e)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.frequency++
	e.lastAccessed = now
	c.hits++
	c.recentHits++

	payload, err := c.decode(e)
	if err != nil {
		// Corrupt entry; drop it and report a miss.
		c.removeLocked(key, e)
		c.misses++
		return nil, false
	}
	return payload, true
}

// Set stores payload under key with an adaptively chosen TTL.
func (c *ResultCache) Set(key string, payload []byte) {
	c.SetWithTTL(key, payload, 0)
}

// SetWithTTL stores payload under key. A non-positive ttl selects the
// adaptive TTL.
func (c *ResultCache) SetWithTTL(key string, payload []byte, ttl time.Duration) {
	if payload == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.adaptiveTTLLocked()
	}

	stored, compressed := c.compress(payload)

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	now := c.now()
	c.entries[key] = &entry{
		payload:      stored,
		compressed:   compressed,
		createdAt:    now,
		ttl:          ttl,
		frequency:    1,
		lastAccessed: now,
		size:         int64(len(stored)),
	}
	c.bytes += int64(len(stored))

	c.evictLocked()
}

// Invalidate removes a single key. Returns true if the key was present.
func (c *ResultCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	return true
}

// InvalidateAll clears the cache.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.bytes = 0
}

// Cleanup removes all expired entries. Intended to be called periodically.
func (c *ResultCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key, e)
			c.expirations++
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:           len(c.entries),
		Bytes:             c.bytes,
		Hits:              c.hits,
		Misses:            c.misses,
		Evictions:         c.evictions,
		Expirations:       c.expirations,
		Compressions:      c.compressions,
		BytesSaved:        c.bytesSaved,
		CurrentTTLSeconds: int(c.currentTTL.Seconds()),
	}
}

// adaptiveTTLLocked computes the TTL for the next Set based on the recent hit
// rate: above target the TTL stretches from the default toward MaxTTL in
// proportion to the excess; below target it shrinks toward MinTTL so stale
// data refreshes sooner. Counters are halved once the window fills, so old
// traffic decays instead of dominating forever.
func (c *ResultCache) adaptiveTTLLocked() time.Duration {
	if c.cfg.DisableAdaptiveTTL || c.recentRequests < adaptiveMinSamples {
		return c.cfg.DefaultTTL
	}

	hitRate := float64(c.recentHits) / float64(c.recentRequests)
	defaultTTL := c.cfg.DefaultTTL

	if hitRate >= TargetHitRate {
		adjustment := (hitRate - TargetHitRate) / (1 - TargetHitRate)
		c.currentTTL = defaultTTL + time.Duration(float64(MaxTTL-defaultTTL)*adjustment)
	} else {
		adjustment := (TargetHitRate - hitRate) / TargetHitRate
		c.currentTTL = defaultTTL - time.Duration(float64(defaultTTL-MinTTL)*adjustment)
	}

	if c.currentTTL < MinTTL {
		c.currentTTL = MinTTL
	}
	if c.currentTTL > MaxTTL {
		c.currentTTL = MaxTTL
	}

	if c.recentRequests >= adaptiveWindowSize {
		c.recentHits /= 2
		c.recentRequests /= 2
	}

	return c.currentTTL
}

// evictLocked enforces the entry-count and byte caps by repeatedly removing
// the entry with the lowest hybrid LRU/LFU score.
func (c *ResultCache) evictLocked() {
	for len(c.entries) > c.cfg.MaxEntries || c.bytes > c.cfg.MaxBytes {
		key, e := c.worstLocked()
		if key == "" {
			return
		}
		c.removeLocked(key, e)
		c.evictions++
	}
}

// worstLocked finds the entry with the lowest eviction score.
func (c *ResultCache) worstLocked() (string, *entry) {
	now := c.now()
	var worstKey string
	var worstEntry *entry
	worstScore := math.Inf(1)

	for key, e := range c.entries {
		if score := e.evictionScore(now); score < worstScore {
			worstScore = score
			worstKey = key
			worstEntry = e
		}
	}
	return worstKey, worstEntry
}

func (c *ResultCache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	c.bytes -= e.size
}

// compress gzips the payload when it is large enough and the savings justify
// the CPU spent decompressing on every hit.
func (c *ResultCache) compress(payload []byte) ([]byte, bool) {
	if c.cfg.DisableCompression || len(payload) < compressionThreshold {
		return payload, false
	}

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, 6)
	if err != nil {
		return payload, false
	}
	if _, err := gw.Write(payload); err != nil {
		return payload, false
	}
	if err := gw.Close(); err != nil {
		return payload, false
	}

	compressed := buf.Bytes()
	if float64(len(compressed)) >= float64(len(payload))*(1-compressionMinSavings) {
		return payload, false
	}

	c.compressions++
	c.bytesSaved += uint64(len(payload) - len(compressed))
	return compressed, true
}

// decode returns the entry payload, decompressing when needed.
func (c *ResultCache) decode(e *entry) ([]byte, error) {
	if !e.compressed {
		out := make([]byte, len(e.payload))
		copy(out, e.payload)
		return out, nil
	}

	gr, err := gzip.NewReader(bytes.NewReader(e.payload))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
