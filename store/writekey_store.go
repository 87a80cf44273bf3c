package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulsetrack/api/metrics"
)

type cacheEntry struct {
	isValid   bool
	expiresAt time.Time
}

// WriteKeyPostgresStore validates per-tenant write keys against PostgreSQL as
// the source of truth, fronted by an in-memory, time-based cache. Write keys
// are what the tracking snippet presents instead of a user credential.
type WriteKeyPostgresStore struct {
	db       *sql.DB
	log      *zap.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.CollectMetrics
}

// NewWriteKeyStore creates a new PostgreSQL-backed write key store.
func NewWriteKeyStore(db *sql.DB, log *zap.Logger, cacheTTL time.Duration, m *metrics.CollectMetrics) *WriteKeyPostgresStore {
	return &WriteKeyPostgresStore{
		db:       db,
		log:      log,
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// IsValid checks whether a write key is active. It first checks the local
// cache and falls back to the database when the key is absent or the cache
// entry has expired.
func (s *WriteKeyPostgresStore) IsValid(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	entry, found := s.cache[key]
	s.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if s.metrics != nil {
			s.metrics.WriteKeyCacheHits.Inc()
		}
		return entry.isValid, nil
	}

	if s.metrics != nil {
		s.metrics.WriteKeyCacheMisses.Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have populated the entry while we waited.
	entry, found = s.cache[key]
	if found && time.Now().Before(entry.expiresAt) {
		return entry.isValid, nil
	}

	var isValid bool
	query := `SELECT EXISTS(SELECT 1 FROM write_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW()))`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&isValid)
	if err != nil {
		s.log.Error("Failed to validate write key in database", zap.Error(err))
		// Errors are not cached; the next request retries the database.
		return false, err
	}

	s.cache[key] = cacheEntry{
		isValid:   isValid,
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	return isValid, nil
}
