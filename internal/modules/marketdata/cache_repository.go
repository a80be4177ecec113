package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheRepository stores fetched price tables in cache.db, serialized with
// msgpack. Entries expire by age; a stale or unreadable entry is a miss.
type CacheRepository struct {
	cacheDB *sql.DB
	maxAge  time.Duration
	log     zerolog.Logger
}

// NewCacheRepository creates a new price table cache repository
func NewCacheRepository(cacheDB *sql.DB, maxAge time.Duration, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		cacheDB: cacheDB,
		maxAge:  maxAge,
		log:     log.With().Str("repo", "price_cache").Logger(),
	}
}

// CacheKey derives the cache key for a symbol set and window.
func CacheKey(symbols []string, start, end string) string {
	return start + ".." + end + ":" + strings.Join(symbols, ",")
}

// Get returns the cached table for key, or nil on a miss.
func (r *CacheRepository) Get(key string) *PriceTable {
	var payload []byte
	var createdAt int64
	err := r.cacheDB.QueryRow(
		"SELECT payload, created_at FROM price_tables WHERE key = ?", key,
	).Scan(&payload, &createdAt)
	if err != nil {
		return nil
	}

	if time.Since(time.Unix(createdAt, 0)) > r.maxAge {
		return nil
	}

	var pt PriceTable
	if err := msgpack.Unmarshal(payload, &pt); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached price table")
		return nil
	}
	return &pt
}

// Put stores a table under key, replacing any previous entry.
func (r *CacheRepository) Put(key string, pt *PriceTable) error {
	payload, err := msgpack.Marshal(pt)
	if err != nil {
		return fmt.Errorf("failed to encode price table: %w", err)
	}

	_, err = r.cacheDB.Exec(
		"INSERT OR REPLACE INTO price_tables (key, payload, created_at) VALUES (?, ?, ?)",
		key, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store price table: %w", err)
	}
	return nil
}
