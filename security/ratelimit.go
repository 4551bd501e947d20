package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiter defaults
const (
	DefaultMaxEntries      = 10000
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxIdleTime     = 30 * time.Minute
)

// rateLimiterEntry tracks a rate limiter and its last access time
type rateLimiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier rate limiting using token bucket algorithm
// with LRU eviction to prevent unbounded memory growth.
//
// Idle entries are swept from within Allow at most once per cleanup interval;
// the limiter starts no goroutines.
type RateLimiter struct {
	limiters    map[string]*list.Element // identifier -> list element
	lruList     *list.List               // LRU list of *rateLimiterEntry
	mu          sync.Mutex
	rate        rate.Limit
	burst       int
	maxEntries  int
	maxIdleTime time.Duration
	logger      *slog.Logger
	now         func() time.Time

	cleanupInterval time.Duration
	lastCleanup     time.Time

	// Statistics
	totalEvictions int64
	totalCleanups  int64
}

// NewRateLimiter creates a rate limiter with DefaultMaxEntries tracked identifiers
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger) *RateLimiter {
	return NewRateLimiterWithConfig(requestsPerSecond, burst, DefaultMaxEntries, logger)
}

// NewRateLimiterWithConfig creates a new rate limiter with custom max entries configuration.
// When maxEntries is reached, least recently used entries are evicted.
// Set maxEntries to 0 for unlimited (not recommended for production).
func NewRateLimiterWithConfig(requestsPerSecond float64, burst, maxEntries int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries < 0 {
		logger.Warn("Invalid maxEntries, using default", "maxEntries", maxEntries)
		maxEntries = DefaultMaxEntries
	}

	return &RateLimiter{
		limiters:        make(map[string]*list.Element),
		lruList:         list.New(),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxEntries:      maxEntries,
		maxIdleTime:     DefaultMaxIdleTime,
		logger:          logger,
		now:             time.Now,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// SetClock replaces the time source (tests)
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if now != nil {
		rl.now = now
	}
}

// Allow checks if an event for the given identifier is allowed
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) >= rl.cleanupInterval {
		rl.cleanupLocked(now, rl.maxIdleTime)
		rl.lastCleanup = now
	}

	if elem, exists := rl.limiters[identifier]; exists {
		rl.lruList.MoveToFront(elem)
		entry := elem.Value.(*rateLimiterEntry)
		entry.lastAccess = now
		return entry.limiter.AllowN(now, 1)
	}

	if rl.maxEntries > 0 && len(rl.limiters) >= rl.maxEntries {
		rl.evictLRU()
	}

	entry := &rateLimiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: now,
	}
	rl.limiters[identifier] = rl.lruList.PushFront(entry)

	return entry.limiter.AllowN(now, 1)
}

// evictLRU removes the least recently used entry. Must be called with mutex locked.
func (rl *RateLimiter) evictLRU() {
	elem := rl.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*rateLimiterEntry)
	delete(rl.limiters, entry.identifier)
	rl.lruList.Remove(elem)
	rl.totalEvictions++

	rl.logger.Debug("Rate limiter LRU eviction",
		"total_evictions", rl.totalEvictions,
		"current_entries", len(rl.limiters))
}

// Cleanup removes limiters that have not been used for maxIdleTime
func (rl *RateLimiter) Cleanup(maxIdleTime time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupLocked(rl.now(), maxIdleTime)
}

func (rl *RateLimiter) cleanupLocked(now time.Time, maxIdleTime time.Duration) {
	removed := 0

	// Walk from the back: the least recently used entries are there
	var prev *list.Element
	for elem := rl.lruList.Back(); elem != nil; elem = prev {
		prev = elem.Prev()
		entry := elem.Value.(*rateLimiterEntry)
		if now.Sub(entry.lastAccess) <= maxIdleTime {
			break
		}
		delete(rl.limiters, entry.identifier)
		rl.lruList.Remove(elem)
		removed++
	}

	if removed > 0 {
		rl.totalCleanups++
		rl.logger.Debug("Rate limiter cleanup completed",
			"removed", removed,
			"remaining", len(rl.limiters),
			"total_cleanups", rl.totalCleanups)
	}
}

// Stats holds rate limiter statistics for monitoring
type Stats struct {
	CurrentEntries int     // Current number of tracked identifiers
	MaxEntries     int     // Maximum allowed entries (0 = unlimited)
	TotalEvictions int64   // Total number of LRU evictions
	TotalCleanups  int64   // Total number of cleanup passes that removed entries
	MemoryPressure float64 // Percentage of max capacity used (0-100)
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := Stats{
		CurrentEntries: len(rl.limiters),
		MaxEntries:     rl.maxEntries,
		TotalEvictions: rl.totalEvictions,
		TotalCleanups:  rl.totalCleanups,
	}
	if rl.maxEntries > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(rl.maxEntries) * 100.0
	}
	return stats
}
