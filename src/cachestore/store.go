// Package cachestore provides a namespaced key/value cache used to avoid
// redundant upstream calls for immutable historical data. Entries live in a
// sqlite table for persistence across restarts, fronted by an in-memory
// go-cache layer for repeat reads within a session. Caching is best-effort:
// write failures are logged, never surfaced.
package cachestore

import (
	"database/sql"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dmytrosymonov/gto-sales-dashboard/src/logger"
)

// entry is the stored wrapper. CapturedAt is unix milliseconds of the write,
// 0 when the value was stored without a timestamp.
type entry struct {
	Value      json.RawMessage `json:"v"`
	CapturedAt int64           `json:"ts,omitempty"`
}

type Store struct {
	db         *sql.DB
	namespace  string
	maxEntries int
	mem        *gocache.Cache
	now        func() time.Time
}

func New(db *sql.DB, namespace string, maxEntries int) *Store {
	return &Store{
		db:         db,
		namespace:  namespace,
		maxEntries: maxEntries,
		mem:        gocache.New(gocache.NoExpiration, 10*time.Minute),
		now:        time.Now,
	}
}

// Get returns the raw cached value for key. maxAge <= 0 disables the age
// check; otherwise an entry older than maxAge is purged and reported absent.
// Age is only enforced for entries written with a capture timestamp.
func (s *Store) Get(key string, maxAge time.Duration) (json.RawMessage, bool) {
	e, ok := s.load(key)
	if !ok {
		return nil, false
	}

	if maxAge > 0 && e.CapturedAt > 0 {
		age := s.now().UnixMilli() - e.CapturedAt
		if age > maxAge.Milliseconds() {
			s.evict(key)
			logger.L.Debug("Cache entry expired", "namespace", s.namespace, "key", key, "ageMs", age)
			return nil, false
		}
	}
	return e.Value, true
}

// Put stores value under key. withTimestamp records the capture time so that
// later reads can enforce a max age. Failures are non-fatal: on a write
// error the oldest half of the namespace is evicted and the value is simply
// not cached this time.
func (s *Store) Put(key string, value any, withTimestamp bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.L.Warn("Cache write skipped: value not serializable", "namespace", s.namespace, "key", key, "error", err)
		return
	}

	e := entry{Value: raw}
	if withTimestamp {
		e.CapturedAt = s.now().UnixMilli()
	}

	// Overwriting an existing key does not grow the table, so the key itself
	// is left out of the capacity count.
	if s.maxEntries > 0 {
		if n, err := s.countOthers(key); err == nil && n >= s.maxEntries {
			logger.L.Info("Cache at capacity, evicting oldest half", "namespace", s.namespace, "entries", n)
			s.evictOldestHalf()
		}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		logger.L.Warn("Cache write skipped: entry not serializable", "namespace", s.namespace, "key", key, "error", err)
		return
	}

	var capturedAt sql.NullInt64
	if e.CapturedAt > 0 {
		capturedAt = sql.NullInt64{Int64: e.CapturedAt, Valid: true}
	}
	_, err = s.db.Exec(`
		INSERT INTO cache_entries (namespace, cache_key, value, captured_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, cache_key) DO UPDATE SET
			value = excluded.value,
			captured_at = excluded.captured_at,
			created_at = excluded.created_at;
	`, s.namespace, key, string(payload), capturedAt, s.now().UnixMilli())
	if err != nil {
		// Best-effort recovery: free space, do not retry this write.
		logger.L.Warn("Cache write failed, evicting oldest half", "namespace", s.namespace, "key", key, "error", err)
		s.evictOldestHalf()
		return
	}

	s.mem.Set(key, e, gocache.NoExpiration)
}

func (s *Store) load(key string) (entry, bool) {
	if v, ok := s.mem.Get(key); ok {
		if e, ok := v.(entry); ok {
			return e, true
		}
	}

	var payload string
	err := s.db.QueryRow(
		`SELECT value FROM cache_entries WHERE namespace = ? AND cache_key = ?`,
		s.namespace, key,
	).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.L.Warn("Cache read failed", "namespace", s.namespace, "key", key, "error", err)
		}
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		logger.L.Warn("Corrupt cache entry, evicting", "namespace", s.namespace, "key", key, "error", err)
		s.evict(key)
		return entry{}, false
	}
	s.mem.Set(key, e, gocache.NoExpiration)
	return e, true
}

func (s *Store) evict(key string) {
	s.mem.Delete(key)
	if _, err := s.db.Exec(
		`DELETE FROM cache_entries WHERE namespace = ? AND cache_key = ?`,
		s.namespace, key,
	); err != nil {
		logger.L.Warn("Cache evict failed", "namespace", s.namespace, "key", key, "error", err)
	}
}

func (s *Store) count() (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, s.namespace,
	).Scan(&n)
	return n, err
}

func (s *Store) countOthers(key string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ? AND cache_key <> ?`,
		s.namespace, key,
	).Scan(&n)
	return n, err
}

// evictOldestHalf drops the older half of the namespace by insertion order.
func (s *Store) evictOldestHalf() {
	n, err := s.count()
	if err != nil || n == 0 {
		return
	}
	limit := (n + 1) / 2
	_, err = s.db.Exec(`
		DELETE FROM cache_entries
		WHERE namespace = ?1 AND cache_key IN (
			SELECT cache_key FROM cache_entries
			WHERE namespace = ?1
			ORDER BY created_at ASC, cache_key ASC
			LIMIT ?2
		)`, s.namespace, limit)
	if err != nil {
		logger.L.Warn("Cache bulk eviction failed", "namespace", s.namespace, "error", err)
		return
	}
	// The memory layer may now hold keys the table no longer has; dropping
	// it wholesale keeps both layers consistent.
	s.mem.Flush()
	logger.L.Info("Evicted oldest cache entries", "namespace", s.namespace, "evicted", limit)
}
