package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"aktis-analytics-jira/internal/clock"
	. "aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// CachedSet is an issue set as served by the cache. Issues must be treated
// as read-only; the next refresh replaces the set rather than patching it.
type CachedSet struct {
	Query       string             `json:"query"`
	Issues      []models.Issue     `json:"issues"`
	Diagnostics models.Diagnostics `json:"diagnostics"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

type cacheEntry struct {
	issues      []models.Issue
	diagnostics models.Diagnostics
	fetchedAt   time.Time
	generation  uint64

	// refreshError is set on entries restored from a snapshot after a
	// failed load. Every read of such an entry is stale.
	refreshError string
}

// Cache holds one issue set per query for a TTL. Expiry is checked lazily
// on read. "Check TTL, decide, fetch, write" runs under a per-query lock so
// concurrent callers for the same query never trigger a second fetch.
type Cache struct {
	loader    Loader
	snapshots SnapshotStore
	clock     clock.Clock
	ttl       time.Duration
	logger    arbor.ILogger

	mu         sync.Mutex
	entries    map[string]*cacheEntry
	locks      map[string]*sync.Mutex
	generation uint64
}

// NewCache builds a cache over loader. snapshots may be nil, in which case
// a failed first fetch is a hard error.
func NewCache(loader Loader, snapshots SnapshotStore, clk clock.Clock, ttl time.Duration, logger arbor.ILogger) *Cache {
	return &Cache{
		loader:    loader,
		snapshots: snapshots,
		clock:     clk,
		ttl:       ttl,
		logger:    logger,
		entries:   make(map[string]*cacheEntry),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) keyLock(query string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[query]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[query] = lock
	}
	return lock
}

func (c *Cache) entry(query string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[query]
}

func (c *Cache) currentGeneration(query string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[query]; ok {
		return e.generation
	}
	return 0
}

// Get returns the issue set for query. A fresh entry is served as is. A
// missing or expired entry, or forceRefresh, runs the loader. A forced
// caller that waited behind a refresh which completed after its request
// reuses that result instead of fetching again.
//
// When the loader fails, the previous in-memory entry or the stored
// snapshot is served with Stale set. Only a failure with nothing to fall
// back on is returned as an error.
func (c *Cache) Get(ctx context.Context, query string, forceRefresh bool) (*CachedSet, error) {
	seen := c.currentGeneration(query)

	lock := c.keyLock(query)
	lock.Lock()
	defer lock.Unlock()

	existing := c.entry(query)
	if existing != nil {
		age := c.clock.Now().Sub(existing.fetchedAt)
		if !forceRefresh && age < c.ttl {
			c.logger.Debug().Str("query", query).Dur("age", age).Msg("Cache hit")
			return existing.result(query, true), nil
		}
		if forceRefresh && existing.generation > seen {
			c.logger.Debug().Str("query", query).Msg("Reusing refresh completed while waiting")
			return existing.result(query, true), nil
		}
	}

	if forceRefresh {
		c.logger.Debug().Str("query", query).Msg("Forced refresh")
	} else {
		c.logger.Debug().Str("query", query).Msg("Cache miss")
	}

	issues, diag, err := c.loader.Load(ctx, query)
	if err != nil {
		return c.fallback(query, existing, err)
	}

	now := c.clock.Now()
	diag.FetchedAt = now

	c.mu.Lock()
	c.generation++
	fresh := &cacheEntry{
		issues:      issues,
		diagnostics: diag,
		fetchedAt:   now,
		generation:  c.generation,
	}
	c.entries[query] = fresh
	c.mu.Unlock()

	if c.snapshots != nil {
		snapshot := &Snapshot{Query: query, FetchedAt: now, Issues: issues, Diagnostics: diag}
		if err := c.snapshots.SaveSnapshot(snapshot); err != nil {
			c.logger.Warn().Err(err).Str("query", query).Msg("Failed to save snapshot")
		}
	}

	return fresh.result(query, false), nil
}

func (c *Cache) fallback(query string, existing *cacheEntry, cause error) (*CachedSet, error) {
	if existing != nil {
		c.logger.Warn().Err(cause).Str("query", query).Msg("Refresh failed, serving cached set")
		return existing.stale(query, cause), nil
	}

	if c.snapshots != nil {
		snapshot, err := c.snapshots.LoadSnapshot(query)
		if err != nil {
			c.logger.Warn().Err(err).Str("query", query).Msg("Failed to read snapshot")
		}
		if snapshot != nil {
			c.logger.Warn().Err(cause).Str("query", query).Msg("Refresh failed, serving stored snapshot")

			c.mu.Lock()
			c.generation++
			restored := &cacheEntry{
				issues:       snapshot.Issues,
				diagnostics:  snapshot.Diagnostics,
				fetchedAt:    snapshot.FetchedAt,
				generation:   c.generation,
				refreshError: cause.Error(),
			}
			c.entries[query] = restored
			c.mu.Unlock()

			return restored.stale(query, cause), nil
		}
	}

	c.logger.Error().Err(cause).Str("query", query).Msg("Refresh failed with no cached data")
	return nil, cause
}

// Invalidate discards the cached set for query regardless of its age. The
// stored snapshot is kept as the fallback for a failing refresh.
func (c *Cache) Invalidate(query string) {
	c.mu.Lock()
	_, existed := c.entries[query]
	delete(c.entries, query)
	c.mu.Unlock()

	if existed {
		c.logger.Info().Str("query", query).Msg("Cache entry invalidated")
	}
}

// Clear discards every cached set
func (c *Cache) Clear() {
	c.mu.Lock()
	count := len(c.entries)
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	c.logger.Info().Int("entries", count).Msg("Cache cleared")
}

// Status lists the cached entries ordered by query
func (c *Cache) Status() []models.CacheStatus {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]models.CacheStatus, 0, len(c.entries))
	for query, e := range c.entries {
		age := now.Sub(e.fetchedAt)
		statuses = append(statuses, models.CacheStatus{
			Query:     query,
			FetchedAt: e.fetchedAt,
			AgeSecs:   int(age / time.Second),
			Issues:    len(e.issues),
			Expired:   age >= c.ttl,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Query < statuses[j].Query })
	return statuses
}

func (e *cacheEntry) result(query string, fromCache bool) *CachedSet {
	issues := make([]models.Issue, len(e.issues))
	copy(issues, e.issues)

	diag := e.diagnostics
	diag.FromCache = fromCache
	if e.refreshError != "" {
		diag.Stale = true
		diag.RefreshError = e.refreshError
	}
	return &CachedSet{
		Query:       query,
		Issues:      issues,
		Diagnostics: diag,
		FetchedAt:   e.fetchedAt,
	}
}

func (e *cacheEntry) stale(query string, cause error) *CachedSet {
	set := e.result(query, true)
	set.Diagnostics.Stale = true
	set.Diagnostics.RefreshError = cause.Error()
	return set
}
